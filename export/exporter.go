package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lucasjlepore/fit-decode/analytics"
	"github.com/lucasjlepore/fit-decode/sink"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// Export writes the full artifact bundle for a decoded session into outDir:
// manifest.json, records.jsonl, canonical_samples.{parquet,csv},
// messages_index.json, workout_structure.json, lap_summary.json (if laps were
// found), activity_summary.json, and notes.md.
func Export(mem *sink.InMemorySink, analysis *analytics.Analysis, outDir string, opts Options) (*Result, error) {
	if mem == nil {
		return nil, fmt.Errorf("export: nil sink")
	}
	if analysis == nil {
		return nil, fmt.Errorf("export: nil analysis")
	}
	if err := ensureOutputDir(outDir, opts.Overwrite); err != nil {
		return nil, err
	}

	format := strings.ToLower(strings.TrimSpace(opts.SamplesFormat))
	if format == "" {
		format = "parquet"
	}
	if format != "parquet" && format != "csv" {
		return nil, fmt.Errorf("export: unsupported samples format %q", format)
	}

	recordsPath := filepath.Join(outDir, "records.jsonl")
	recordCount, err := writeRecordsJSONL(recordsPath, mem)
	if err != nil {
		return nil, fmt.Errorf("write records.jsonl: %w", err)
	}

	samples := buildCanonicalSamples(mem)
	samplesPath := filepath.Join(outDir, "canonical_samples."+format)
	switch format {
	case "csv":
		if err := writeCanonicalCSV(samplesPath, samples); err != nil {
			return nil, fmt.Errorf("write canonical samples csv: %w", err)
		}
	case "parquet":
		if err := writeCanonicalParquet(samplesPath, samples); err != nil {
			return nil, fmt.Errorf("write canonical samples parquet: %w", err)
		}
	}

	index := buildMessagesIndex(mem)
	indexPath := filepath.Join(outDir, "messages_index.json")
	if err := writeJSON(indexPath, index); err != nil {
		return nil, fmt.Errorf("write messages_index.json: %w", err)
	}

	structurePath := filepath.Join(outDir, "workout_structure.json")
	if err := writeJSON(structurePath, analysis.WorkoutStructure); err != nil {
		return nil, fmt.Errorf("write workout_structure.json: %w", err)
	}

	lapPath := ""
	if len(analysis.Laps) > 0 {
		lapPath = filepath.Join(outDir, "lap_summary.json")
		if err := writeJSON(lapPath, analysis.Laps); err != nil {
			return nil, fmt.Errorf("write lap_summary.json: %w", err)
		}
	}

	summary := activitySummaryFromAnalysis(analysis)
	summaryPath := filepath.Join(outDir, "activity_summary.json")
	if err := writeJSON(summaryPath, summary); err != nil {
		return nil, fmt.Errorf("write activity_summary.json: %w", err)
	}

	notesPath := filepath.Join(outDir, "notes.md")
	if err := os.WriteFile(notesPath, []byte(analytics.BuildTrainingSummaryMarkdown(analysis)+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write notes.md: %w", err)
	}

	manifest := Manifest{
		FormatVersion:    FormatVersion,
		GeneratedAt:      time.Now().UTC(),
		RecordsPath:      filepath.Base(recordsPath),
		CanonicalSamples: filepath.Base(samplesPath),
		MessagesIndex:    filepath.Base(indexPath),
		WorkoutStructure: filepath.Base(structurePath),
		ActivitySummary:  filepath.Base(summaryPath),
		RecordMessageNum: recordCount,
		MessageTypeCount: len(index.Messages),
		SchemaDescription: []string{
			"records.jsonl: one JSON object per decoded FIT message, fields already scale/offset-applied.",
			"canonical_samples: one row per record-message timestamp with the common ride/run metrics flattened out.",
			"messages_index.json: every message type observed and the field names carried on it.",
			"workout_structure.json / lap_summary.json / activity_summary.json: derived training analysis.",
		},
	}
	manifestPath := filepath.Join(outDir, "manifest.json")
	if err := writeJSON(manifestPath, manifest); err != nil {
		return nil, fmt.Errorf("write manifest.json: %w", err)
	}

	return &Result{
		OutputDir:            outDir,
		ManifestPath:         manifestPath,
		RecordsPath:          recordsPath,
		CanonicalSamplesPath: samplesPath,
		MessagesIndexPath:    indexPath,
		WorkoutStructurePath: structurePath,
		LapSummaryPath:       lapPath,
		ActivitySummaryPath:  summaryPath,
		NotesPath:            notesPath,
		SampleCount:          len(samples),
	}, nil
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (set overwrite=true to allow)", path)
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeRecordsJSONL flattens the sink's columnar store back into one JSON
// line per message: record-message rows in timestamp order, then every
// non-record message type in its original per-field insertion order.
func writeRecordsJSONL(path string, mem *sink.InMemorySink) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := bufio.NewWriterSize(f, 1<<20)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	count := 0
	tsCol, hasRecord := mem.RecordColumn("timestamp")
	if hasRecord {
		timestamps := make([]uint32, 0, len(tsCol))
		for ts := range tsCol {
			timestamps = append(timestamps, ts)
		}
		sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

		names := mem.RecordFieldNames()
		for i, ts := range timestamps {
			fields := make(map[string]any, len(names))
			for _, name := range names {
				if name == "timestamp" {
					continue
				}
				col, ok := mem.RecordColumn(name)
				if !ok {
					continue
				}
				if v, ok := col[ts]; ok {
					fields[name] = v
				}
			}
			env := RecordEnvelope{
				Message:      "record",
				Index:        i,
				Timestamp:    ts,
				TimestampUTC: time.Unix(int64(ts), 0).UTC().Format(time.RFC3339),
				Fields:       fields,
			}
			if err := enc.Encode(env); err != nil {
				return count, err
			}
			count++
		}
	}

	messages := mem.Messages()
	sort.Strings(messages)
	for _, name := range messages {
		rows := messageRowCount(mem, name)
		for i := 0; i < rows; i++ {
			fields := fieldsAtRow(mem, name, i)
			env := RecordEnvelope{Message: name, Index: i, Fields: fields}
			if err := enc.Encode(env); err != nil {
				return count, err
			}
			count++
		}
	}

	return count, buf.Flush()
}

func messageRowCount(mem *sink.InMemorySink, message string) int {
	max := 0
	for _, field := range fieldNamesFor(mem, message) {
		seq, ok := mem.NonRecordColumn(message, field)
		if !ok {
			continue
		}
		if len(seq) > max {
			max = len(seq)
		}
	}
	return max
}

func fieldsAtRow(mem *sink.InMemorySink, message string, row int) map[string]any {
	out := make(map[string]any)
	for _, field := range fieldNamesFor(mem, message) {
		seq, ok := mem.NonRecordColumn(message, field)
		if !ok || row >= len(seq) {
			continue
		}
		out[field] = seq[row]
	}
	return out
}

func buildCanonicalSamples(mem *sink.InMemorySink) []CanonicalSample {
	tsCol, ok := mem.RecordColumn("timestamp")
	if !ok || len(tsCol) == 0 {
		return nil
	}
	timestamps := make([]uint32, 0, len(tsCol))
	for ts := range tsCol {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	power, _ := mem.RecordColumn("power")
	hr, _ := mem.RecordColumn("heart_rate")
	cad, _ := mem.RecordColumn("cadence")
	speed, hasSpeed := mem.RecordColumn("enhanced_speed")
	if !hasSpeed {
		speed, _ = mem.RecordColumn("speed")
	}
	distance, _ := mem.RecordColumn("distance")
	altitude, hasAlt := mem.RecordColumn("enhanced_altitude")
	if !hasAlt {
		altitude, _ = mem.RecordColumn("altitude")
	}
	temperature, _ := mem.RecordColumn("temperature")

	out := make([]CanonicalSample, 0, len(timestamps))
	start := time.Unix(int64(timestamps[0]), 0).UTC()
	for i, ts := range timestamps {
		when := time.Unix(int64(ts), 0).UTC()
		out = append(out, CanonicalSample{
			Timestamp:    when,
			TSUTCISO:     when.Format(time.RFC3339),
			ElapsedS:     when.Sub(start).Seconds(),
			PowerW:       numericAt(power, ts),
			HRBPM:        numericAt(hr, ts),
			CadenceRPM:   numericAt(cad, ts),
			SpeedMPS:     numericAt(speed, ts),
			DistanceM:    numericAt(distance, ts),
			AltitudeM:    numericAt(altitude, ts),
			TemperatureC: numericAt(temperature, ts),
			RecordIndex:  i,
		})
	}
	return out
}

func numericAt(col map[uint32]any, ts uint32) *float64 {
	if col == nil {
		return nil
	}
	v, ok := col[ts]
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return &n
	case int64:
		out := float64(n)
		return &out
	case uint64:
		out := float64(n)
		return &out
	default:
		return nil
	}
}

func fieldNamesFor(mem *sink.InMemorySink, message string) []string {
	names := mem.NonRecordFieldNames(message)
	sort.Strings(names)
	return names
}

func buildMessagesIndex(mem *sink.InMemorySink) MessagesIndex {
	var out MessagesIndex

	if names := mem.RecordFieldNames(); len(names) > 0 {
		sort.Strings(names)
		tsCol, _ := mem.RecordColumn("timestamp")
		out.Messages = append(out.Messages, MessageFields{Name: "record", Rows: len(tsCol), Fields: names})
	}

	messages := mem.Messages()
	sort.Strings(messages)
	for _, name := range messages {
		fields := fieldNamesFor(mem, name)
		out.Messages = append(out.Messages, MessageFields{
			Name:   name,
			Rows:   messageRowCount(mem, name),
			Fields: fields,
		})
	}
	return out
}

func activitySummaryFromAnalysis(a *analytics.Analysis) ActivitySummary {
	return ActivitySummary{
		Sport:             a.Sport,
		SubSport:          a.SubSport,
		ElapsedSeconds:    a.ElapsedSeconds,
		MovingSeconds:     a.MovingSeconds,
		DistanceMeters:    a.DistanceMeters,
		ElevationGainM:    a.ElevationGainM,
		ElevationLossM:    a.ElevationLossM,
		AvgPowerWatts:     a.AvgPowerWatts,
		MaxPowerWatts:     a.MaxPowerWatts,
		NormalizedPower:   a.NormalizedPower,
		WorkKilojoules:    a.WorkKilojoules,
		AvgHeartRate:      a.AvgHeartRate,
		MaxHeartRate:      a.MaxHeartRate,
		AvgCadence:        a.AvgCadence,
		MaxCadence:        a.MaxCadence,
		FTPWatts:          a.FTPWatts,
		FTPSource:         a.FTPSource,
		IntensityFactor:   a.IntensityFactor,
		TrainingStress:    a.TrainingStress,
		PowerHRDecoupling: a.PowerHRDecoupling,
	}
}

func writeCanonicalCSV(path string, samples []CanonicalSample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"ts_utc_iso", "elapsed_s", "power_w", "hr_bpm", "cadence_rpm",
		"speed_mps", "distance_m", "altitude_m", "temperature_c", "record_index",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			s.TSUTCISO,
			formatFloat(s.ElapsedS),
			formatFloatPtr(s.PowerW),
			formatFloatPtr(s.HRBPM),
			formatFloatPtr(s.CadenceRPM),
			formatFloatPtr(s.SpeedMPS),
			formatFloatPtr(s.DistanceM),
			formatFloatPtr(s.AltitudeM),
			formatFloatPtr(s.TemperatureC),
			strconv.Itoa(s.RecordIndex),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeCanonicalParquet(path string, samples []CanonicalSample) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	pw, err := writer.NewParquetWriter(fw, new(canonicalParquetRow), 4)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, s := range samples {
		row := canonicalParquetRow{
			TSUTCISO:     s.TSUTCISO,
			ElapsedS:     s.ElapsedS,
			PowerW:       valueOrNaN(s.PowerW),
			HRBPM:        valueOrNaN(s.HRBPM),
			CadenceRPM:   valueOrNaN(s.CadenceRPM),
			SpeedMPS:     valueOrNaN(s.SpeedMPS),
			DistanceM:    valueOrNaN(s.DistanceM),
			AltitudeM:    valueOrNaN(s.AltitudeM),
			TemperatureC: valueOrNaN(s.TemperatureC),
			RecordIndex:  int64(s.RecordIndex),
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return err
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
