package types

// VerificationEmailJob is the payload published to the message queue when a
// new account needs its address confirmed. The worker renders and sends it.
type VerificationEmailJob struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Link     string `json:"link"`
}
