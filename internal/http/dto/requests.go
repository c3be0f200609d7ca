package dto

import "time"

// Create and update bodies for campaigns and posts bind straight to the
// service input types; the requests below cover the action endpoints.

type ChangeCampaignStatusRequest struct {
	Status string `json:"status"`
}

type LinkPostRequest struct {
	PostID string `json:"post_id"`
}

type SchedulePostRequest struct {
	ScheduledTime time.Time `json:"scheduled_time"`
}

type PlatformPublishedRequest struct {
	PostID string `json:"post_id"`
	URL    string `json:"url,omitempty"`
}

type PlatformFailedRequest struct {
	Error string `json:"error"`
}
