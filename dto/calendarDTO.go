package dto

type VisibilityRequest struct {
	// pointer so an explicit false is distinguishable from a missing field
	Enabled *bool `json:"enabled" binding:"required"`
}

type ExportRequest struct {
	TaskIDs []string `json:"taskIds" binding:"required,min=1,max=100,dive,required"`
}
