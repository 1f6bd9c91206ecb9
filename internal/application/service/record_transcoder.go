package service

import (
	"fmt"
	"granulemigration/internal/domain/entity"
	"granulemigration/internal/domain/errors/domain"
	"granulemigration/internal/domain/service"
	"granulemigration/internal/port/outbound"

	"github.com/go-viper/mapstructure/v2"
)

// RecordTranscoder turns raw source attribute maps into destination rows. It
// holds no state; field mapping is delegated to the domain translation functions.
type RecordTranscoder struct{}

// Decode maps a raw record onto a SourceGranule and checks required fields.
func (RecordTranscoder) Decode(raw outbound.RawRecord) (*entity.SourceGranule, error) {
	var src entity.SourceGranule
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &src,
		TagName: "mapstructure",
		// Source attributes differ only by case ("fileName" and legacy "filename").
		MatchName: func(mapKey, fieldName string) bool { return mapKey == fieldName },
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]any(raw)); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSourceRecord, err)
	}

	switch {
	case src.GranuleID == "":
		return &src, fmt.Errorf("%w: granuleId is required", domain.ErrInvalidSourceRecord)
	case src.CollectionID == "":
		return &src, fmt.Errorf("%w: collectionId is required", domain.ErrInvalidSourceRecord)
	case src.Status == "":
		return &src, fmt.Errorf("%w: status is required", domain.ErrInvalidSourceRecord)
	case src.UpdatedAt == nil:
		return &src, fmt.Errorf("%w: updatedAt is required", domain.ErrInvalidSourceRecord)
	}
	return &src, nil
}

// TranscodeGranule maps a decoded source granule onto a destination row.
func (RecordTranscoder) TranscodeGranule(
	src *entity.SourceGranule,
	refs service.GranuleReferences,
) (*entity.Granule, error) {
	granule, err := service.TranslateGranule(src, refs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSourceRecord, err)
	}
	return granule, nil
}

// TranscodeFile maps one embedded source file onto a destination row.
func (RecordTranscoder) TranscodeFile(src entity.SourceFile, granuleCumulusID int64) (*entity.File, error) {
	file, err := service.TranslateFile(src, granuleCumulusID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSourceRecord, err)
	}
	return file, nil
}

// rawIdentity extracts what can be known about a record that failed to decode.
func rawIdentity(raw outbound.RawRecord) (granuleID string, files any, fileCount int) {
	granuleID, _ = raw["granuleId"].(string)
	files = raw["files"]
	if list, ok := files.([]any); ok {
		fileCount = len(list)
	}
	return granuleID, files, fileCount
}
