package config

type UpdateConfigPayload struct {
	SyncIntervalMinutes *int  `json:"sync_interval_minutes,omitempty" validate:"omitempty,min=1"`
	SyncOnStartup       *bool `json:"sync_on_startup,omitempty"`
	DownloadPDFs        *bool `json:"download_pdfs,omitempty"`
}
