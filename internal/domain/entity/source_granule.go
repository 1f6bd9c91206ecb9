package entity

// SourceGranule is a granule record as stored in the schemaless source store.
// Timestamps are epoch milliseconds, date-times are ISO-8601 strings.
type SourceGranule struct {
	GranuleID    string `mapstructure:"granuleId"    json:"granuleId"`
	CollectionID string `mapstructure:"collectionId" json:"collectionId"`
	Status       string `mapstructure:"status"       json:"status,omitempty"`
	Execution    string `mapstructure:"execution"    json:"execution,omitempty"`
	Provider     string `mapstructure:"provider"     json:"provider,omitempty"`
	PDRName      string `mapstructure:"pdrName"      json:"pdrName,omitempty"`
	CmrLink      string `mapstructure:"cmrLink"      json:"cmrLink,omitempty"`

	Published        *bool    `mapstructure:"published"        json:"published,omitempty"`
	Duration         *float64 `mapstructure:"duration"         json:"duration,omitempty"`
	ProductVolume    *int64   `mapstructure:"productVolume"    json:"productVolume,omitempty"`
	TimeToPreprocess *float64 `mapstructure:"timeToPreprocess" json:"timeToPreprocess,omitempty"`
	TimeToArchive    *float64 `mapstructure:"timeToArchive"    json:"timeToArchive,omitempty"`

	Error       map[string]any `mapstructure:"error"       json:"error,omitempty"`
	QueryFields map[string]any `mapstructure:"queryFields" json:"queryFields,omitempty"`

	BeginningDateTime       string `mapstructure:"beginningDateTime"       json:"beginningDateTime,omitempty"`
	EndingDateTime          string `mapstructure:"endingDateTime"          json:"endingDateTime,omitempty"`
	LastUpdateDateTime      string `mapstructure:"lastUpdateDateTime"      json:"lastUpdateDateTime,omitempty"`
	ProcessingStartDateTime string `mapstructure:"processingStartDateTime" json:"processingStartDateTime,omitempty"`
	ProcessingEndDateTime   string `mapstructure:"processingEndDateTime"   json:"processingEndDateTime,omitempty"`
	ProductionDateTime      string `mapstructure:"productionDateTime"      json:"productionDateTime,omitempty"`

	Timestamp *int64 `mapstructure:"timestamp" json:"timestamp,omitempty"`
	CreatedAt *int64 `mapstructure:"createdAt" json:"createdAt,omitempty"`
	UpdatedAt *int64 `mapstructure:"updatedAt" json:"updatedAt,omitempty"`

	Files []SourceFile `mapstructure:"files" json:"files,omitempty"`
}

// SourceFile is a file entry embedded in a SourceGranule.
type SourceFile struct {
	Bucket       string `mapstructure:"bucket"       json:"bucket,omitempty"`
	Key          string `mapstructure:"key"          json:"key,omitempty"`
	Size         *int64 `mapstructure:"size"         json:"size,omitempty"`
	Checksum     string `mapstructure:"checksum"     json:"checksum,omitempty"`
	ChecksumType string `mapstructure:"checksumType" json:"checksumType,omitempty"`
	FileName     string `mapstructure:"fileName"     json:"fileName,omitempty"`
	Source       string `mapstructure:"source"       json:"source,omitempty"`
	Path         string `mapstructure:"path"         json:"path,omitempty"`
	Type         string `mapstructure:"type"         json:"type,omitempty"`

	// Filename is the legacy "s3://bucket/key" location of older records.
	Filename string `mapstructure:"filename" json:"filename,omitempty"`
}

// FileCount returns the number of embedded files.
func (g *SourceGranule) FileCount() int {
	if g == nil {
		return 0
	}
	return len(g.Files)
}
