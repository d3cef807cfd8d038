package types

// CreateSiteRequest is the body of POST /websites.
//
// AutoMonitor and NotificationsEnabled are accepted for compatibility but
// new sites always start monitored with notifications off.
type CreateSiteRequest struct {
	Name                 string `json:"name" binding:"required"`
	URL                  string `json:"url" binding:"required"`
	Interval             int    `json:"interval"`
	AutoMonitor          *bool  `json:"auto_monitor"`
	NotificationsEnabled *bool  `json:"notifications_enabled"`
}

// UpdateSiteRequest is the body of PUT /websites/:id. Omitted fields are
// left untouched.
type UpdateSiteRequest struct {
	Name                 *string `json:"name"`
	URL                  *string `json:"url"`
	Interval             *int    `json:"interval"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
	AutoMonitor          *bool   `json:"auto_monitor"`
}

// NotifyRequest is the body of POST /notify.
type NotifyRequest struct {
	SiteID  int64  `json:"site_id" binding:"required"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
