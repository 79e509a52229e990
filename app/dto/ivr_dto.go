package dto

// IVR webhook events
const (
	IVREventStart  = "start"
	IVREventDigits = "digits"
	IVREventHangup = "hangup"
)

// IVR actions returned to the provider
const (
	IVRActionSay    = "say"
	IVRActionGather = "gather"
	IVRActionHangup = "hangup"
)

// IVRWebhookRequest is one callback of the phone provider during a call
type IVRWebhookRequest struct {
	CallID string `json:"call_id" validate:"required,max=128"`
	Phone  string `json:"phone" validate:"required,max=20"`
	Event  string `json:"event" validate:"required,oneof=start digits hangup"`
	Digits string `json:"digits,omitempty" validate:"omitempty,max=8"`
}

// IVRWebhookResponse tells the provider what to play next
type IVRWebhookResponse struct {
	CallID string `json:"call_id"`
	Action string `json:"action"`
	Text   string `json:"text,omitempty"`
}
