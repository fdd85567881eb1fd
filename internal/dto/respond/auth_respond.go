package respond

// RefreshTokenRespond 刷新结果
type RefreshTokenRespond struct {
	AccessToken string `json:"access_token"`
}
