package user

type SessionRequest struct {
	Username string `json:"username"`
}

type SessionResponse struct {
	AccessToken string `json:"access_token"`
	ID          string `json:"id"`
	Username    string `json:"username"`
}
