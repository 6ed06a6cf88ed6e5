package models

import "strings"

// Activation is the artifact identifying a provisioned eSIM profile.
type Activation struct {
	QRCodeURL      string `json:"qr_code_url"`
	LPACode        string `json:"lpa_code"`
	SMDPAddress    string `json:"smdp_address,omitempty"`
	ActivationCode string `json:"activation_code,omitempty"`
}

// Empty reports whether the provider has not produced any usable artifact yet.
func (a *Activation) Empty() bool {
	return a == nil || (strings.TrimSpace(a.QRCodeURL) == "" && strings.TrimSpace(a.LPACode) == "")
}
