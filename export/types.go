// Package export renders a decoded FIT session into an LLM- and
// analysis-friendly artifact bundle: a JSON manifest, a line-oriented record
// dump, a columnar canonical-samples table, a message/field catalogue, and
// the computed training analysis.
package export

import "time"

// FormatVersion identifies the on-disk schema of the exported bundle.
const FormatVersion = "fit_decode_export_v1"

// Options controls export behavior.
type Options struct {
	// Overwrite allows writing into a non-empty output directory.
	Overwrite bool
	// SamplesFormat selects "parquet" (default) or "csv" for canonical_samples.
	SamplesFormat string
}

// Result describes the files written by Export.
type Result struct {
	OutputDir            string `json:"output_dir"`
	ManifestPath         string `json:"manifest_path"`
	RecordsPath          string `json:"records_path"`
	CanonicalSamplesPath string `json:"canonical_samples_path"`
	MessagesIndexPath    string `json:"messages_index_path"`
	WorkoutStructurePath string `json:"workout_structure_path"`
	LapSummaryPath       string `json:"lap_summary_path,omitempty"`
	ActivitySummaryPath  string `json:"activity_summary_path"`
	NotesPath            string `json:"notes_path"`
	SampleCount          int    `json:"sample_count"`
}

// Manifest captures export metadata and pointers to the other bundle files.
type Manifest struct {
	FormatVersion     string    `json:"format_version"`
	GeneratedAt       time.Time `json:"generated_at"`
	RecordsPath       string    `json:"records_path"`
	CanonicalSamples  string    `json:"canonical_samples_path"`
	MessagesIndex     string    `json:"messages_index_path"`
	WorkoutStructure  string    `json:"workout_structure_path"`
	ActivitySummary   string    `json:"activity_summary_path"`
	RecordMessageNum  int       `json:"record_message_count"`
	MessageTypeCount  int       `json:"message_type_count"`
	SchemaDescription []string  `json:"schema_description"`
}

// RecordEnvelope is one JSONL line in records.jsonl: a single decoded FIT
// message with every field already scale/offset-applied by the decoder.
type RecordEnvelope struct {
	Message      string         `json:"message"`
	Index        int            `json:"index"`
	Timestamp    uint32         `json:"timestamp,omitempty"`
	TimestampUTC string         `json:"timestamp_utc,omitempty"`
	Fields       map[string]any `json:"fields"`
}

// CanonicalSample is one second-level record-message row, flattened for
// tabular consumption (Parquet/CSV) alongside the richer JSONL stream.
type CanonicalSample struct {
	Timestamp    time.Time
	TSUTCISO     string
	ElapsedS     float64
	PowerW       *float64
	HRBPM        *float64
	CadenceRPM   *float64
	SpeedMPS     *float64
	DistanceM    *float64
	AltitudeM    *float64
	TemperatureC *float64
	RecordIndex  int
}

// MessagesIndex summarizes every message type observed and the field names
// carried on it, so a downstream reader can discover the schema without
// scanning the full records.jsonl stream.
type MessagesIndex struct {
	Messages []MessageFields `json:"messages"`
}

// MessageFields lists the field names observed for one message type plus how
// many rows (timestamps or sequence entries) it produced.
type MessageFields struct {
	Name   string   `json:"name"`
	Rows   int      `json:"rows"`
	Fields []string `json:"fields"`
}

// ActivitySummary is a flat projection of the computed training analysis,
// convenient for callers that only need the headline numbers.
type ActivitySummary struct {
	Sport             string  `json:"sport"`
	SubSport          string  `json:"sub_sport"`
	ElapsedSeconds    float64 `json:"elapsed_seconds"`
	MovingSeconds     float64 `json:"moving_seconds"`
	DistanceMeters    float64 `json:"distance_meters"`
	ElevationGainM    float64 `json:"elevation_gain_m"`
	ElevationLossM    float64 `json:"elevation_loss_m"`
	AvgPowerWatts     float64 `json:"avg_power_watts"`
	MaxPowerWatts     float64 `json:"max_power_watts"`
	NormalizedPower   float64 `json:"normalized_power_watts"`
	WorkKilojoules    float64 `json:"work_kilojoules"`
	AvgHeartRate      float64 `json:"avg_heart_rate_bpm"`
	MaxHeartRate      float64 `json:"max_heart_rate_bpm"`
	AvgCadence        float64 `json:"avg_cadence_rpm"`
	MaxCadence        float64 `json:"max_cadence_rpm"`
	FTPWatts          float64 `json:"ftp_watts"`
	FTPSource         string  `json:"ftp_source"`
	IntensityFactor   float64 `json:"intensity_factor"`
	TrainingStress    float64 `json:"training_stress_score"`
	PowerHRDecoupling float64 `json:"power_hr_decoupling_pct"`
}

type canonicalParquetRow struct {
	TSUTCISO     string  `parquet:"name=ts_utc_iso, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ElapsedS     float64 `parquet:"name=elapsed_s, type=DOUBLE"`
	PowerW       float64 `parquet:"name=power_w, type=DOUBLE"`
	HRBPM        float64 `parquet:"name=hr_bpm, type=DOUBLE"`
	CadenceRPM   float64 `parquet:"name=cadence_rpm, type=DOUBLE"`
	SpeedMPS     float64 `parquet:"name=speed_mps, type=DOUBLE"`
	DistanceM    float64 `parquet:"name=distance_m, type=DOUBLE"`
	AltitudeM    float64 `parquet:"name=altitude_m, type=DOUBLE"`
	TemperatureC float64 `parquet:"name=temperature_c, type=DOUBLE"`
	RecordIndex  int64   `parquet:"name=record_index, type=INT64"`
}
