package storage

import (
	"encoding/json"
	"errors"

	"bitevo/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Versioned returns the record header written by this build.
func Versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeGenerationStats(stats []model.GenerationStats) ([]byte, error) {
	return json.Marshal(stats)
}

func DecodeGenerationStats(data []byte) ([]model.GenerationStats, error) {
	var stats []model.GenerationStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	for _, record := range stats {
		if err := checkVersion(record.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
