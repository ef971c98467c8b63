// Package analytics derives training-load metrics (normalized power,
// estimated FTP, power zones, interval structure, HR decoupling) from a
// decoded activity's in-memory sink, and renders them into a human-readable
// training note.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lucasjlepore/fit-decode/sink"
)

const secondsPerHour = 3600.0

// Config controls optional calculations that require athlete-specific inputs.
type Config struct {
	FTPWatts float64
}

// Analysis contains extracted metrics and generated notes for a decoded
// activity.
type Analysis struct {
	Sport             string           `json:"sport"`
	SubSport          string           `json:"sub_sport"`
	StartTime         time.Time        `json:"start_time"`
	EndTime           time.Time        `json:"end_time"`
	ElapsedSeconds    float64          `json:"elapsed_seconds"`
	MovingSeconds     float64          `json:"moving_seconds"`
	DistanceMeters    float64          `json:"distance_meters"`
	ElevationGainM    float64          `json:"elevation_gain_m"`
	ElevationLossM    float64          `json:"elevation_loss_m"`
	Calories          int              `json:"calories"`
	AvgSpeedMps       float64          `json:"avg_speed_mps"`
	MaxSpeedMps       float64          `json:"max_speed_mps"`
	AvgPowerWatts     float64          `json:"avg_power_watts"`
	MaxPowerWatts     float64          `json:"max_power_watts"`
	NormalizedPower   float64          `json:"normalized_power_watts"`
	VariabilityIndex  float64          `json:"variability_index"`
	WorkKilojoules    float64          `json:"work_kilojoules"`
	AvgHeartRate      float64          `json:"avg_heart_rate_bpm"`
	MaxHeartRate      float64          `json:"max_heart_rate_bpm"`
	AvgCadence        float64          `json:"avg_cadence_rpm"`
	MaxCadence        float64          `json:"max_cadence_rpm"`
	FTPWatts          float64          `json:"ftp_watts"`
	FTPSource         string           `json:"ftp_source"`
	IntensityFactor   float64          `json:"intensity_factor"`
	TrainingStress    float64          `json:"training_stress_score"`
	Best20MinPower    float64          `json:"best_20min_power_watts"`
	PowerHRDecoupling float64          `json:"power_hr_decoupling_pct"`
	PowerZones        []ZoneDuration   `json:"power_zones,omitempty"`
	Laps              []LapSummary     `json:"laps,omitempty"`
	Intervals         IntervalSummary  `json:"intervals"`
	WorkoutStructure  WorkoutStructure `json:"workout_structure"`
	Notes             string           `json:"notes"`
}

// ZoneDuration stores duration spent in a given FTP-based power zone.
type ZoneDuration struct {
	Zone       string  `json:"zone"`
	MinPctFTP  float64 `json:"min_pct_ftp"`
	MaxPctFTP  float64 `json:"max_pct_ftp"`
	Seconds    float64 `json:"seconds"`
	Percentage float64 `json:"percentage"`
}

// LapSummary is a compact lap-level view for interval and pacing analysis.
type LapSummary struct {
	Index              int     `json:"index"`
	StartOffsetSeconds float64 `json:"start_offset_seconds"`
	EndOffsetSeconds   float64 `json:"end_offset_seconds"`
	DurationSeconds    float64 `json:"duration_seconds"`
	DistanceMeters     float64 `json:"distance_meters"`
	AvgPowerWatts      float64 `json:"avg_power_watts"`
	MaxPowerWatts      float64 `json:"max_power_watts"`
	AvgHeartRate       float64 `json:"avg_heart_rate_bpm"`
	AvgCadence         float64 `json:"avg_cadence_rpm"`
	Label              string  `json:"label"`
}

// IntervalSummary captures the detected interval structure of the workout.
type IntervalSummary struct {
	WorkCount                  int     `json:"work_count"`
	RecoveryCount              int     `json:"recovery_count"`
	ActivationCount            int     `json:"activation_count"`
	AvgWorkDurationSeconds     float64 `json:"avg_work_duration_seconds"`
	AvgRecoveryDurationSeconds float64 `json:"avg_recovery_duration_seconds"`
	AvgWorkPowerWatts          float64 `json:"avg_work_power_watts"`
	AvgRecoveryPowerWatts      float64 `json:"avg_recovery_power_watts"`
	WorkPowerChangePct         float64 `json:"work_power_change_pct"`
	WorkCadenceChangePct       float64 `json:"work_cadence_change_pct"`
	WorkHeartRateChange        float64 `json:"work_heart_rate_change_bpm"`
}

type recordSeries struct {
	start, end  uint32
	haveRange   bool
	durationSec float64

	powerSamples []float64
	powerForNP   []float64
	hrSamples    []float64
	cadSamples   []float64
	speedSamples []float64

	pairedPower []float64
	pairedHR    []float64

	lastDistanceMeters float64
	workKJ             float64
}

// AnalyzeSink derives an Analysis from s, which must already have gone
// through the post-processing pipeline (epoch shift, pause tracking, HR
// reassembly, interpolation, unit conversion).
func AnalyzeSink(s *sink.InMemorySink, cfg Config) (*Analysis, error) {
	tsCol, ok := s.RecordColumn("timestamp")
	if !ok || len(tsCol) == 0 {
		return nil, fmt.Errorf("analytics: no record.timestamp column")
	}

	series := buildRecordSeries(s, tsCol)

	analysis := &Analysis{
		Sport:    sessionString(s, "sport"),
		SubSport: sessionString(s, "sub_sport"),
	}

	if series.haveRange {
		analysis.StartTime = time.Unix(int64(series.start), 0).UTC()
		analysis.EndTime = time.Unix(int64(series.end), 0).UTC()
	}

	analysis.ElapsedSeconds = safePositive(sessionFloat(s, "total_elapsed_time"))
	if analysis.ElapsedSeconds == 0 {
		analysis.ElapsedSeconds = series.durationSec
	}
	analysis.MovingSeconds = safePositive(sessionFloat(s, "total_timer_time"))
	if analysis.MovingSeconds == 0 {
		analysis.MovingSeconds = analysis.ElapsedSeconds
	}
	analysis.DistanceMeters = safePositive(sessionFloat(s, "total_distance"))
	if analysis.DistanceMeters == 0 {
		analysis.DistanceMeters = series.lastDistanceMeters
	}
	analysis.ElevationGainM = safePositive(sessionFloat(s, "total_ascent"))
	analysis.ElevationLossM = safePositive(sessionFloat(s, "total_descent"))
	analysis.Calories = int(sessionFloat(s, "total_calories"))

	analysis.AvgSpeedMps = safePositive(sessionFloat(s, "avg_speed"))
	if analysis.AvgSpeedMps == 0 && analysis.ElapsedSeconds > 0 {
		analysis.AvgSpeedMps = analysis.DistanceMeters / analysis.ElapsedSeconds
	}
	analysis.MaxSpeedMps = safePositive(sessionFloat(s, "max_speed"))
	if analysis.MaxSpeedMps == 0 {
		analysis.MaxSpeedMps = maxValue(series.speedSamples)
	}

	analysis.AvgPowerWatts = sessionFloat(s, "avg_power")
	if analysis.AvgPowerWatts == 0 {
		analysis.AvgPowerWatts = average(series.powerSamples)
	}
	analysis.MaxPowerWatts = sessionFloat(s, "max_power")
	if analysis.MaxPowerWatts == 0 {
		analysis.MaxPowerWatts = maxValue(series.powerSamples)
	}

	analysis.NormalizedPower = sessionFloat(s, "normalized_power")
	if analysis.NormalizedPower == 0 {
		analysis.NormalizedPower = normalizedPower(series.powerForNP)
	}
	if analysis.NormalizedPower == 0 {
		analysis.NormalizedPower = analysis.AvgPowerWatts
	}

	analysis.WorkKilojoules = sessionFloat(s, "total_work") / 1000.0
	if analysis.WorkKilojoules == 0 {
		analysis.WorkKilojoules = series.workKJ
	}
	if analysis.WorkKilojoules == 0 && analysis.AvgPowerWatts > 0 && analysis.ElapsedSeconds > 0 {
		analysis.WorkKilojoules = analysis.AvgPowerWatts * analysis.ElapsedSeconds / 1000.0
	}

	analysis.AvgHeartRate = sessionFloat(s, "avg_heart_rate")
	if analysis.AvgHeartRate == 0 {
		analysis.AvgHeartRate = average(series.hrSamples)
	}
	analysis.MaxHeartRate = sessionFloat(s, "max_heart_rate")
	if analysis.MaxHeartRate == 0 {
		analysis.MaxHeartRate = maxValue(series.hrSamples)
	}

	analysis.AvgCadence = sessionFloat(s, "avg_cadence")
	if analysis.AvgCadence == 0 {
		analysis.AvgCadence = average(series.cadSamples)
	}
	analysis.MaxCadence = sessionFloat(s, "max_cadence")
	if analysis.MaxCadence == 0 {
		analysis.MaxCadence = maxValue(series.cadSamples)
	}

	analysis.Best20MinPower = bestRollingPower(series.powerForNP, 20*60)
	analysis.FTPWatts = safePositive(cfg.FTPWatts)
	if analysis.FTPWatts > 0 {
		analysis.FTPSource = "input"
	} else if estimated := estimateFTP(series.powerForNP); estimated > 0 {
		analysis.FTPWatts = estimated
		analysis.FTPSource = "estimated"
	} else {
		analysis.FTPSource = "unavailable"
	}

	if analysis.AvgPowerWatts > 0 {
		analysis.VariabilityIndex = analysis.NormalizedPower / analysis.AvgPowerWatts
	}
	if analysis.FTPWatts > 0 && analysis.NormalizedPower > 0 {
		analysis.IntensityFactor = analysis.NormalizedPower / analysis.FTPWatts
	}
	if analysis.ElapsedSeconds > 0 && analysis.IntensityFactor > 0 {
		analysis.TrainingStress = (analysis.ElapsedSeconds / secondsPerHour) * analysis.IntensityFactor * analysis.IntensityFactor * 100.0
	}

	analysis.PowerHRDecoupling = powerHRDecoupling(series.pairedPower, series.pairedHR)
	analysis.PowerZones = buildPowerZones(series.powerForNP, analysis.FTPWatts)
	analysis.Laps, analysis.Intervals = summarizeLaps(s, analysis.AvgPowerWatts)
	analysis.WorkoutStructure = InferWorkoutStructure(analysis)
	analysis.Notes = BuildTrainingNotes(analysis)

	return analysis, nil
}

func buildRecordSeries(s *sink.InMemorySink, tsCol map[uint32]any) recordSeries {
	rs := recordSeries{}
	if len(tsCol) == 0 {
		return rs
	}

	ordered := make([]uint32, 0, len(tsCol))
	for t := range tsCol {
		ordered = append(ordered, t)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	powerCol, _ := s.RecordColumn("power")
	hrCol, _ := s.RecordColumn("heart_rate")
	cadCol, _ := s.RecordColumn("cadence")
	speedCol, hasSpeed := s.RecordColumn("enhanced_speed")
	if !hasSpeed {
		speedCol, _ = s.RecordColumn("speed")
	}
	distCol, _ := s.RecordColumn("distance")

	rs.start = ordered[0]
	rs.end = ordered[len(ordered)-1]
	rs.haveRange = true
	rs.durationSec = float64(rs.end - rs.start)

	var (
		lastPower    float64
		haveLastPwr  bool
		lastTS       uint32
		haveLastTS   bool
		workJoules   float64
		lastDistance float64
	)

	for _, ts := range ordered {
		power, hasPower := numericAt(powerCol, ts)
		hrv, hasHR := numericAt(hrCol, ts)
		cadence, hasCadence := numericAt(cadCol, ts)
		speed, hasSpd := numericAt(speedCol, ts)

		if hasPower {
			rs.powerSamples = append(rs.powerSamples, power)
		}
		if hasHR {
			rs.hrSamples = append(rs.hrSamples, hrv)
		}
		if hasCadence {
			rs.cadSamples = append(rs.cadSamples, cadence)
		}
		if hasSpd {
			rs.speedSamples = append(rs.speedSamples, speed)
		}
		if hasPower && hasHR && hrv > 0 {
			rs.pairedPower = append(rs.pairedPower, power)
			rs.pairedHR = append(rs.pairedHR, hrv)
		}

		if dist, ok := numericAt(distCol, ts); ok && dist > 0 {
			lastDistance = dist
		}

		if hasPower {
			if haveLastTS && ts > lastTS && haveLastPwr {
				delta := float64(ts - lastTS)
				if delta > 0 && delta <= 5 {
					workJoules += lastPower * delta
				}
				missing := int(math.Round(delta)) - 1
				if missing > 0 && missing <= 30 {
					for i := 0; i < missing; i++ {
						rs.powerForNP = append(rs.powerForNP, lastPower)
					}
				}
			}
			rs.powerForNP = append(rs.powerForNP, power)
			lastPower = power
			haveLastPwr = true
		}

		lastTS = ts
		haveLastTS = true
	}

	rs.lastDistanceMeters = lastDistance
	if workJoules == 0 && len(rs.powerSamples) > 0 {
		for _, p := range rs.powerSamples {
			workJoules += p
		}
	}
	rs.workKJ = workJoules / 1000.0

	return rs
}

func summarizeLaps(s *sink.InMemorySink, sessionAvgPower float64) ([]LapSummary, IntervalSummary) {
	timerTime, _ := s.NonRecordColumn("lap", "total_timer_time")
	elapsedTime, _ := s.NonRecordColumn("lap", "total_elapsed_time")
	distance, _ := s.NonRecordColumn("lap", "total_distance")
	avgPower, _ := s.NonRecordColumn("lap", "avg_power")
	maxPower, _ := s.NonRecordColumn("lap", "max_power")
	avgHR, _ := s.NonRecordColumn("lap", "avg_heart_rate")
	avgCad, _ := s.NonRecordColumn("lap", "avg_cadence")

	n := len(timerTime)
	if n == 0 {
		return nil, IntervalSummary{}
	}

	summaries := make([]LapSummary, 0, n)
	lapPowers := make([]float64, 0, n)
	offset := 0.0
	for i := 0; i < n; i++ {
		duration := safePositive(floatAt(timerTime, i))
		if duration == 0 {
			duration = safePositive(floatAt(elapsedTime, i))
		}
		power := floatAt(avgPower, i)
		if power > 0 {
			lapPowers = append(lapPowers, power)
		}

		summaries = append(summaries, LapSummary{
			Index:              i + 1,
			StartOffsetSeconds: offset,
			EndOffsetSeconds:   offset + duration,
			DurationSeconds:    duration,
			DistanceMeters:     safePositive(floatAt(distance, i)),
			AvgPowerWatts:      power,
			MaxPowerWatts:      floatAt(maxPower, i),
			AvgHeartRate:       floatAt(avgHR, i),
			AvgCadence:         floatAt(avgCad, i),
			Label:              "steady",
		})
		offset += duration
	}

	baselinePower := sessionAvgPower
	if baselinePower <= 0 {
		baselinePower = average(lapPowers)
	}
	if baselinePower <= 0 {
		baselinePower = 150
	}
	hardThreshold := baselinePower * 1.20
	easyThreshold := baselinePower * 0.90

	var workIndices, recoveryIndices []int
	activationCount := 0

	for i := range summaries {
		lap := &summaries[i]
		if lap.AvgPowerWatts <= 0 || lap.DurationSeconds <= 0 {
			continue
		}
		if lap.AvgPowerWatts >= hardThreshold {
			if lap.DurationSeconds < 90 {
				lap.Label = "activation"
				activationCount++
			} else {
				lap.Label = "work"
				workIndices = append(workIndices, i)
			}
			continue
		}
		if lap.DurationSeconds >= 60 && lap.AvgPowerWatts <= easyThreshold {
			lap.Label = "easy"
		}
	}

	seenRecovery := make(map[int]struct{})
	for _, wi := range workIndices {
		next := wi + 1
		if next >= len(summaries) {
			continue
		}
		candidate := &summaries[next]
		if candidate.DurationSeconds >= 60 && candidate.AvgPowerWatts > 0 && candidate.AvgPowerWatts <= easyThreshold {
			candidate.Label = "recovery"
			if _, exists := seenRecovery[next]; !exists {
				seenRecovery[next] = struct{}{}
				recoveryIndices = append(recoveryIndices, next)
			}
		}
	}

	if len(workIndices) > 0 {
		firstWork := workIndices[0]
		lastWork := workIndices[len(workIndices)-1]
		for i := 0; i < firstWork; i++ {
			if summaries[i].Label == "easy" || i == 0 {
				summaries[i].Label = "warmup"
			}
		}
		for i := lastWork + 1; i < len(summaries); i++ {
			if summaries[i].Label == "recovery" {
				continue
			}
			if summaries[i].Label == "easy" || summaries[i].AvgPowerWatts <= easyThreshold {
				summaries[i].Label = "cooldown"
			}
		}
	}

	intervals := IntervalSummary{
		WorkCount:       len(workIndices),
		RecoveryCount:   len(recoveryIndices),
		ActivationCount: activationCount,
	}

	workPowers := make([]float64, 0, len(workIndices))
	workDurations := make([]float64, 0, len(workIndices))
	workCadences := make([]float64, 0, len(workIndices))
	workHR := make([]float64, 0, len(workIndices))
	for _, idx := range workIndices {
		workPowers = append(workPowers, summaries[idx].AvgPowerWatts)
		workDurations = append(workDurations, summaries[idx].DurationSeconds)
		if summaries[idx].AvgCadence > 0 {
			workCadences = append(workCadences, summaries[idx].AvgCadence)
		}
		if summaries[idx].AvgHeartRate > 0 {
			workHR = append(workHR, summaries[idx].AvgHeartRate)
		}
	}

	recoveryPowers := make([]float64, 0, len(recoveryIndices))
	recoveryDurations := make([]float64, 0, len(recoveryIndices))
	for _, idx := range recoveryIndices {
		recoveryPowers = append(recoveryPowers, summaries[idx].AvgPowerWatts)
		recoveryDurations = append(recoveryDurations, summaries[idx].DurationSeconds)
	}

	intervals.AvgWorkPowerWatts = average(workPowers)
	intervals.AvgWorkDurationSeconds = average(workDurations)
	intervals.AvgRecoveryPowerWatts = average(recoveryPowers)
	intervals.AvgRecoveryDurationSeconds = average(recoveryDurations)
	intervals.WorkPowerChangePct = pctChange(firstValue(workPowers), lastValue(workPowers))
	intervals.WorkCadenceChangePct = pctChange(firstValue(workCadences), lastValue(workCadences))
	if len(workHR) >= 2 {
		intervals.WorkHeartRateChange = lastValue(workHR) - firstValue(workHR)
	}

	return summaries, intervals
}

func buildPowerZones(powerSamples []float64, ftp float64) []ZoneDuration {
	if ftp <= 0 || len(powerSamples) == 0 {
		return nil
	}

	type boundary struct {
		zone     string
		min, max float64
	}
	zones := []boundary{
		{zone: "Z1 Active Recovery", min: 0, max: 55},
		{zone: "Z2 Endurance", min: 55, max: 75},
		{zone: "Z3 Tempo", min: 75, max: 90},
		{zone: "Z4 Threshold", min: 90, max: 105},
		{zone: "Z5 VO2", min: 105, max: 120},
		{zone: "Z6 Anaerobic", min: 120, max: 150},
		{zone: "Z7 Neuromuscular", min: 150, max: 1000},
	}

	counts := make([]int, len(zones))
	total := 0
	for _, p := range powerSamples {
		if p < 0 {
			continue
		}
		percent := (p / ftp) * 100.0
		for i, z := range zones {
			if percent >= z.min && percent < z.max {
				counts[i]++
				total++
				break
			}
		}
	}
	if total == 0 {
		return nil
	}

	out := make([]ZoneDuration, 0, len(zones))
	for i, z := range zones {
		seconds := float64(counts[i])
		out = append(out, ZoneDuration{
			Zone:       z.zone,
			MinPctFTP:  z.min,
			MaxPctFTP:  z.max,
			Seconds:    seconds,
			Percentage: (seconds / float64(total)) * 100.0,
		})
	}
	return out
}

func normalizedPower(powerSamples []float64) float64 {
	if len(powerSamples) == 0 {
		return 0
	}
	if len(powerSamples) < 30 {
		return average(powerSamples)
	}

	window := 30
	sum := 0.0
	for i := 0; i < window; i++ {
		sum += powerSamples[i]
	}

	fourthPowerTotal := 0.0
	count := 0
	for i := window - 1; i < len(powerSamples); i++ {
		if i >= window {
			sum += powerSamples[i] - powerSamples[i-window]
		}
		rolling := sum / float64(window)
		fourthPowerTotal += math.Pow(rolling, 4)
		count++
	}
	if count == 0 {
		return average(powerSamples)
	}
	return math.Sqrt(math.Sqrt(fourthPowerTotal / float64(count)))
}

func estimateFTP(powerSamples []float64) float64 {
	best20 := bestRollingPower(powerSamples, 20*60)
	if best20 <= 0 {
		return 0
	}
	return best20 * 0.95
}

func bestRollingPower(powerSamples []float64, seconds int) float64 {
	if len(powerSamples) == 0 || seconds <= 0 {
		return 0
	}
	if len(powerSamples) < seconds {
		return average(powerSamples)
	}

	sum := 0.0
	for i := 0; i < seconds; i++ {
		sum += powerSamples[i]
	}
	best := sum / float64(seconds)
	for i := seconds; i < len(powerSamples); i++ {
		sum += powerSamples[i] - powerSamples[i-seconds]
		current := sum / float64(seconds)
		if current > best {
			best = current
		}
	}
	return best
}

func powerHRDecoupling(power, hrv []float64) float64 {
	n := len(power)
	if n == 0 || n != len(hrv) || n < 20 {
		return 0
	}
	mid := n / 2

	p1, h1 := average(power[:mid]), average(hrv[:mid])
	p2, h2 := average(power[mid:]), average(hrv[mid:])
	if p1 == 0 || p2 == 0 || h1 == 0 || h2 == 0 {
		return 0
	}

	firstRatio := p1 / h1
	secondRatio := p2 / h2
	if firstRatio == 0 {
		return 0
	}
	return ((secondRatio / firstRatio) - 1.0) * 100.0
}

func numericAt(col map[uint32]any, ts uint32) (float64, bool) {
	if col == nil {
		return 0, false
	}
	v, ok := col[ts]
	if !ok || v == nil {
		return 0, false
	}
	return toFloat(v), true
}

func floatAt(seq []any, i int) float64 {
	if i < 0 || i >= len(seq) {
		return 0
	}
	return toFloat(seq[i])
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case uint32:
		return float64(n)
	case int32:
		return float64(n)
	default:
		return 0
	}
}

func sessionFloat(s *sink.InMemorySink, field string) float64 {
	v, err := s.Get("session", field)
	if err != nil {
		return 0
	}
	return toFloat(v)
}

func sessionString(s *sink.InMemorySink, field string) string {
	v, err := s.Get("session", field)
	if err != nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	count := 0
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		total += v
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func maxValue(values []float64) float64 {
	max := 0.0
	found := false
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		if !found || v > max {
			max = v
			found = true
		}
	}
	if !found {
		return 0
	}
	return max
}

func pctChange(start, end float64) float64 {
	if start == 0 {
		return 0
	}
	return ((end / start) - 1.0) * 100.0
}

func firstValue(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[0]
}

func lastValue(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func safePositive(v float64) float64 {
	if !isFinite(v) || v <= 0 {
		return 0
	}
	return v
}
