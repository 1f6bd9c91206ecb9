package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"granulemigration/internal/adapter/outbound/mock"
	"granulemigration/internal/port/outbound"
	"testing"

	"github.com/stretchr/testify/require"
)

const testTable = "granules"

func sourceFile(bucket, key string) map[string]any {
	return map[string]any{
		"bucket":   bucket,
		"key":      key,
		"fileName": key,
		"size":     float64(1024),
	}
}

func sourceGranule(granuleID, collectionID string, updatedAt int64, files ...map[string]any) outbound.RawRecord {
	fileList := make([]any, 0, len(files))
	for _, f := range files {
		fileList = append(fileList, f)
	}
	return outbound.RawRecord{
		"granuleId":    granuleID,
		"collectionId": collectionID,
		"status":       "completed",
		"updatedAt":    float64(updatedAt),
		"createdAt":    float64(updatedAt),
		"files":        fileList,
	}
}

// twoFiles returns two distinct files for a granule.
func twoFiles(granuleID string) []map[string]any {
	return []map[string]any{
		sourceFile("protected", granuleID+".hdf"),
		sourceFile("public", granuleID+".jpg"),
	}
}

type memoryErrorLog struct {
	bytes.Buffer
}

func (m *memoryErrorLog) Close() error { return nil }

func newMemoryErrorLog(t *testing.T) (*ErrorLogWriter, *memoryErrorLog) {
	t.Helper()
	buf := &memoryErrorLog{}
	w, err := NewErrorLogWriter(buf)
	require.NoError(t, err)
	return w, buf
}

func errorLogLines(t *testing.T, w *ErrorLogWriter, buf *memoryErrorLog) []string {
	t.Helper()
	require.NoError(t, w.Close())
	var doc struct {
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	return doc.Errors
}

// seededStores returns a source and a destination holding collection MOD09GQ___006.
func seededStores() (*mock.InMemoryGranuleSource, *mock.InMemoryGranuleDestination, int64) {
	dest := mock.NewInMemoryGranuleDestination()
	collectionID := dest.AddCollection("MOD09GQ", "006")
	return mock.NewInMemoryGranuleSource(), dest, collectionID
}

func manyGranules(n int, collectionID string) []outbound.RawRecord {
	records := make([]outbound.RawRecord, n)
	for i := range n {
		id := fmt.Sprintf("G%03d", i)
		records[i] = sourceGranule(id, collectionID, int64(100+i), sourceFile("b", id+".hdf"))
	}
	return records
}
