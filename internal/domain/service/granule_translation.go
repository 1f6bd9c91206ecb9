package service

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"granulemigration/internal/domain/entity"
)

// GranuleReferences carries the destination identifiers a granule row points at.
type GranuleReferences struct {
	CollectionCumulusID int64
	ProviderCumulusID   *int64
	PDRCumulusID        *int64
}

// TranslateGranule maps a source granule onto the destination row shape.
// It performs no I/O; identifiers that need lookups are passed in refs.
func TranslateGranule(src *entity.SourceGranule, refs GranuleReferences) (*entity.Granule, error) {
	if src == nil {
		return nil, fmt.Errorf("source granule is nil")
	}

	dst := &entity.Granule{
		GranuleID:           src.GranuleID,
		Status:              src.Status,
		CollectionCumulusID: refs.CollectionCumulusID,
		ProviderCumulusID:   refs.ProviderCumulusID,
		PDRCumulusID:        refs.PDRCumulusID,
		Published:           src.Published,
		Duration:            src.Duration,
		TimeToProcess:       src.TimeToPreprocess,
		TimeToArchive:       src.TimeToArchive,
		ProductVolume:       src.ProductVolume,
		CmrLink:             optionalString(src.CmrLink),
		Error:               src.Error,
		QueryFields:         src.QueryFields,
		Timestamp:           optionalMillis(src.Timestamp),
	}

	dateTimes := []struct {
		field string
		value string
		dest  **time.Time
	}{
		{"beginningDateTime", src.BeginningDateTime, &dst.BeginningDateTime},
		{"endingDateTime", src.EndingDateTime, &dst.EndingDateTime},
		{"lastUpdateDateTime", src.LastUpdateDateTime, &dst.LastUpdateDateTime},
		{"processingStartDateTime", src.ProcessingStartDateTime, &dst.ProcessingStartDateTime},
		{"processingEndDateTime", src.ProcessingEndDateTime, &dst.ProcessingEndDateTime},
		{"productionDateTime", src.ProductionDateTime, &dst.ProductionDateTime},
	}
	for _, dt := range dateTimes {
		parsed, err := parseDateTime(dt.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", dt.field, dt.value, err)
		}
		*dt.dest = parsed
	}

	if src.UpdatedAt != nil {
		dst.UpdatedAt = time.UnixMilli(*src.UpdatedAt).UTC()
	}
	if src.CreatedAt != nil {
		dst.CreatedAt = time.UnixMilli(*src.CreatedAt).UTC()
	} else {
		dst.CreatedAt = dst.UpdatedAt
	}

	return dst, nil
}

// TranslateFile maps a source file onto the destination row shape for the given granule.
func TranslateFile(src entity.SourceFile, granuleCumulusID int64) (*entity.File, error) {
	bucket, key := src.Bucket, src.Key
	if (bucket == "" || key == "") && src.Filename != "" {
		var err error
		bucket, key, err = parseS3URI(src.Filename)
		if err != nil {
			return nil, fmt.Errorf("invalid legacy filename %q: %w", src.Filename, err)
		}
	}
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("file has no bucket/key location")
	}

	return &entity.File{
		GranuleCumulusID: granuleCumulusID,
		Bucket:           bucket,
		Key:              key,
		FileSize:         src.Size,
		ChecksumValue:    optionalString(src.Checksum),
		ChecksumType:     optionalString(src.ChecksumType),
		FileName:         optionalString(src.FileName),
		Source:           optionalString(src.Source),
		Path:             optionalString(src.Path),
		Type:             optionalString(src.Type),
	}, nil
}

func parseS3URI(uri string) (string, string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("missing bucket or key")
	}
	return u.Host, key, nil
}

func parseDateTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil //nolint:nilnil // absent date-time is not an error
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalMillis(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}
