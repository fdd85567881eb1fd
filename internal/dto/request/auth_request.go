package request

// RefreshTokenRequest 刷新 Access Token
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}
