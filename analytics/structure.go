package analytics

import (
	"fmt"
	"math"
	"strings"
)

const workoutStructureSchemaVersion = "workout_structure_v1"

// WorkoutStructure is an LLM-oriented semantic view of the session.
type WorkoutStructure struct {
	SchemaVersion  string          `json:"schema_version"`
	Confidence     float64         `json:"confidence"`
	CanonicalLabel string          `json:"canonical_label"`
	Blocks         []WorkoutBlock  `json:"blocks,omitempty"`
	Openers        *OpenersSummary `json:"openers,omitempty"`
	MainSet        *MainSetSummary `json:"main_set,omitempty"`
}

// WorkoutBlock represents one contiguous session block.
type WorkoutBlock struct {
	BlockType          string  `json:"block_type"`
	StartLap           int     `json:"start_lap"`
	EndLap             int     `json:"end_lap"`
	StartOffsetSeconds float64 `json:"start_offset_seconds"`
	EndOffsetSeconds   float64 `json:"end_offset_seconds"`
	DurationSeconds    float64 `json:"duration_seconds"`
	AvgPowerWatts      float64 `json:"avg_power_watts"`
	AvgHeartRate       float64 `json:"avg_heart_rate_bpm"`
	AvgCadence         float64 `json:"avg_cadence_rpm"`
	Description        string  `json:"description"`
}

// OpenersSummary captures short pre-main-set opener efforts.
type OpenersSummary struct {
	Reps               int     `json:"reps"`
	OnDurationSeconds  float64 `json:"on_duration_seconds"`
	OffDurationSeconds float64 `json:"off_duration_seconds"`
	OnPowerWatts       float64 `json:"on_power_watts"`
	OffPowerWatts      float64 `json:"off_power_watts"`
}

// MainSetSummary captures the primary interval set.
type MainSetSummary struct {
	Reps                    int          `json:"reps"`
	WorkDurationSeconds     float64      `json:"work_duration_seconds"`
	RecoveryDurationSeconds float64      `json:"recovery_duration_seconds"`
	WorkPowerWatts          float64      `json:"work_power_watts"`
	RecoveryPowerWatts      float64      `json:"recovery_power_watts"`
	WorkTargetWatts         float64      `json:"work_target_watts"`
	RecoveryTargetWatts     float64      `json:"recovery_target_watts"`
	WorkPctFTP              float64      `json:"work_pct_ftp"`
	RecoveryPctFTP          float64      `json:"recovery_pct_ftp"`
	PowerDriftPct           float64      `json:"power_drift_pct"`
	CadenceDriftPct         float64      `json:"cadence_drift_pct"`
	HeartRateDriftBPM       float64      `json:"heart_rate_drift_bpm"`
	Prescription            string       `json:"prescription"`
	RepsDetail              []MainSetRep `json:"reps_detail,omitempty"`
}

// MainSetRep stores rep-level execution metrics.
type MainSetRep struct {
	Rep                     int     `json:"rep"`
	WorkLap                 int     `json:"work_lap"`
	RecoveryLap             int     `json:"recovery_lap,omitempty"`
	WorkDurationSeconds     float64 `json:"work_duration_seconds"`
	RecoveryDurationSeconds float64 `json:"recovery_duration_seconds,omitempty"`
	WorkPowerWatts          float64 `json:"work_power_watts"`
	RecoveryPowerWatts      float64 `json:"recovery_power_watts,omitempty"`
	WorkPctFTP              float64 `json:"work_pct_ftp,omitempty"`
	RecoveryPctFTP          float64 `json:"recovery_pct_ftp,omitempty"`
	WorkVsTargetPct         float64 `json:"work_vs_target_pct,omitempty"`
	RecoveryVsTargetPct     float64 `json:"recovery_vs_target_pct,omitempty"`
}

// shortEffortCapSeconds bounds how long an "on" or "off" rep in the opener
// window may run before it no longer reads as a primer effort.
const shortEffortCapSeconds = 75.0

// structureInference walks a session's lap labels once and accumulates the
// blocks, confidence score, and opener/main-set summaries that make up a
// WorkoutStructure. Unlike a pipeline of free functions threading the same
// three slices through every step, the running state (which laps are
// already claimed by a block, the confidence accrued so far) lives on the
// receiver so each detection step only has to report what it found.
type structureInference struct {
	laps      []LapSummary
	ftp       float64
	intervals IntervalSummary

	claimed []bool
	result  WorkoutStructure
}

// InferWorkoutStructure converts a session's lap-level labels and interval
// statistics into explicit workout blocks and a main-set prescription.
func InferWorkoutStructure(a *Analysis) WorkoutStructure {
	si := &structureInference{
		laps:      a.Laps,
		ftp:       a.FTPWatts,
		intervals: a.Intervals,
		result: WorkoutStructure{
			SchemaVersion: workoutStructureSchemaVersion,
			Confidence:    0.25,
		},
	}
	if len(si.laps) == 0 {
		si.result.CanonicalLabel = "unable to infer workout structure (no lap data)"
		return si.result
	}
	si.claimed = make([]bool, len(si.laps))

	mainStart, mainEnd := si.mainSetWindow()
	openerStart, openerEnd, openers := si.openersWindow(mainStart)

	si.addWarmup(mainStart, openerStart)
	si.addOpeners(openerStart, openerEnd, openers)
	si.addMainSet(mainStart, mainEnd)
	si.addCooldown(mainEnd)
	si.addRemainingAsSteady()
	si.finishConfidence()

	si.result.CanonicalLabel = si.canonicalLabel()
	return si.result
}

func (si *structureInference) addBlock(blockType string, start, end int, desc string) {
	if start < 0 || end < start || start >= len(si.laps) {
		return
	}
	if end >= len(si.laps) {
		end = len(si.laps) - 1
	}
	si.result.Blocks = append(si.result.Blocks, buildBlock(si.laps, blockType, start, end, desc))
	for i := start; i <= end; i++ {
		si.claimed[i] = true
	}
}

func (si *structureInference) addWarmup(mainStart, openerStart int) {
	if mainStart <= 0 {
		return
	}
	warmupEnd := mainStart - 1
	if openerStart > 0 {
		warmupEnd = openerStart - 1
	}
	if warmupEnd < 0 {
		return
	}
	si.addBlock("warmup", 0, warmupEnd, "Aerobic warmup before intensity")
	si.result.Confidence += 0.08
}

func (si *structureInference) addOpeners(start, end int, openers OpenersSummary) {
	if openers.Reps < 2 || start < 0 || end < start {
		return
	}
	si.result.Openers = &openers
	si.addBlock(
		"openers",
		start,
		end,
		fmt.Sprintf("%dx%s on/%s easy primer efforts", openers.Reps, shortDuration(openers.OnDurationSeconds), shortDuration(openers.OffDurationSeconds)),
	)
	si.result.Confidence += 0.16
}

func (si *structureInference) addMainSet(start, end int) {
	if start < 0 {
		return
	}
	mainSummary := buildMainSetSummary(si.laps, start, end, si.ftp, si.intervals)
	si.result.MainSet = &mainSummary
	si.addBlock("main_set", start, end, mainSummary.Prescription)
	si.result.Confidence += 0.36
	if mainSummary.Reps >= 4 {
		si.result.Confidence += 0.08
	}
}

func (si *structureInference) addCooldown(mainEnd int) {
	start, end := detectCooldownWindow(si.laps, mainEnd)
	if start < 0 || end < start {
		return
	}
	si.addBlock("cooldown", start, end, "Easy cooldown to finish the session")
	si.result.Confidence += 0.08
}

// addRemainingAsSteady keeps every lap represented: any run of laps no
// earlier step claimed becomes its own unclassified block.
func (si *structureInference) addRemainingAsSteady() {
	i := 0
	for i < len(si.laps) {
		if si.claimed[i] {
			i++
			continue
		}
		j := i
		for j+1 < len(si.laps) && !si.claimed[j+1] {
			j++
		}
		si.addBlock("steady", i, j, "Unclassified steady riding block")
		i = j + 1
	}
}

func (si *structureInference) finishConfidence() {
	if len(si.result.Blocks) >= 3 {
		si.result.Confidence += 0.05
	}
	if si.result.Confidence > 0.99 {
		si.result.Confidence = 0.99
	}
}

func (si *structureInference) mainSetWindow() (int, int) {
	var workIdx []int
	for i, lap := range si.laps {
		if lap.Label == "work" {
			workIdx = append(workIdx, i)
		}
	}
	if len(workIdx) == 0 {
		return -1, -1
	}
	start := workIdx[0]
	end := workIdx[len(workIdx)-1]
	if end+1 < len(si.laps) && si.laps[end+1].Label == "recovery" {
		end++
	}
	return start, end
}

func (si *structureInference) openersWindow(mainStart int) (int, int, OpenersSummary) {
	if mainStart <= 1 {
		return -1, -1, OpenersSummary{}
	}

	var onDur, offDur, onPow, offPow []float64
	first, last, reps := -1, -1, 0

	for i := 0; i+1 < mainStart; i++ {
		on, off := si.laps[i], si.laps[i+1]

		isOn := on.Label == "activation"
		if !isOn && si.intervals.AvgWorkPowerWatts > 0 {
			isOn = on.DurationSeconds <= shortEffortCapSeconds && on.AvgPowerWatts >= si.intervals.AvgWorkPowerWatts*0.90
		}
		isOff := off.DurationSeconds <= shortEffortCapSeconds && off.AvgPowerWatts > 0 && off.AvgPowerWatts < on.AvgPowerWatts*0.80

		if !isOn || !isOff {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i + 1
		reps++
		onDur = append(onDur, on.DurationSeconds)
		offDur = append(offDur, off.DurationSeconds)
		onPow = append(onPow, on.AvgPowerWatts)
		offPow = append(offPow, off.AvgPowerWatts)
		i++
	}
	if reps < 2 {
		return -1, -1, OpenersSummary{}
	}
	return first, last, OpenersSummary{
		Reps:               reps,
		OnDurationSeconds:  average(onDur),
		OffDurationSeconds: average(offDur),
		OnPowerWatts:       average(onPow),
		OffPowerWatts:      average(offPow),
	}
}

func (si *structureInference) canonicalLabel() string {
	return buildCanonicalStructureLabel(si.result)
}

func detectCooldownWindow(laps []LapSummary, mainEnd int) (int, int) {
	searchFrom := 0
	if mainEnd >= 0 {
		searchFrom = mainEnd + 1
	}
	start := -1
	for i := searchFrom; i < len(laps); i++ {
		if laps[i].Label == "cooldown" {
			start = i
			break
		}
	}
	if start < 0 {
		return -1, -1
	}

	end := start
	for i := start + 1; i < len(laps); i++ {
		if laps[i].Label != "cooldown" && laps[i].Label != "easy" {
			break
		}
		end = i
	}
	return start, end
}

func buildMainSetSummary(laps []LapSummary, start, end int, ftp float64, intervals IntervalSummary) MainSetSummary {
	var workIdx, recoveryIdx []int
	for i := start; i <= end && i < len(laps); i++ {
		switch laps[i].Label {
		case "work":
			workIdx = append(workIdx, i)
		case "recovery":
			recoveryIdx = append(recoveryIdx, i)
		}
	}

	workDur := make([]float64, 0, len(workIdx))
	workPow := make([]float64, 0, len(workIdx))
	for _, idx := range workIdx {
		workDur = append(workDur, laps[idx].DurationSeconds)
		workPow = append(workPow, laps[idx].AvgPowerWatts)
	}
	recoveryDur := make([]float64, 0, len(recoveryIdx))
	recoveryPow := make([]float64, 0, len(recoveryIdx))
	for _, idx := range recoveryIdx {
		recoveryDur = append(recoveryDur, laps[idx].DurationSeconds)
		recoveryPow = append(recoveryPow, laps[idx].AvgPowerWatts)
	}

	workAvgDur := firstNonZero(average(workDur), intervals.AvgWorkDurationSeconds)
	recoveryAvgDur := firstNonZero(average(recoveryDur), intervals.AvgRecoveryDurationSeconds)
	workAvgPow := firstNonZero(average(workPow), intervals.AvgWorkPowerWatts)
	recoveryAvgPow := firstNonZero(average(recoveryPow), intervals.AvgRecoveryPowerWatts)

	workTarget := roundToNearest(workAvgPow, 5)
	recoveryTarget := roundToNearest(recoveryAvgPow, 5)
	summary := MainSetSummary{
		Reps:                    len(workIdx),
		WorkDurationSeconds:     workAvgDur,
		RecoveryDurationSeconds: recoveryAvgDur,
		WorkPowerWatts:          workAvgPow,
		RecoveryPowerWatts:      recoveryAvgPow,
		WorkTargetWatts:         workTarget,
		RecoveryTargetWatts:     recoveryTarget,
		PowerDriftPct:           intervals.WorkPowerChangePct,
		CadenceDriftPct:         intervals.WorkCadenceChangePct,
		HeartRateDriftBPM:       intervals.WorkHeartRateChange,
	}
	if ftp > 0 {
		summary.WorkPctFTP = (workAvgPow / ftp) * 100.0
		summary.RecoveryPctFTP = (recoveryAvgPow / ftp) * 100.0
	}
	summary.Prescription = fmt.Sprintf(
		"%dx%s @%.0fW with %s @%.0fW recoveries",
		summary.Reps,
		shortDuration(summary.WorkDurationSeconds),
		summary.WorkTargetWatts,
		shortDuration(summary.RecoveryDurationSeconds),
		summary.RecoveryTargetWatts,
	)
	summary.RepsDetail = buildMainSetReps(laps, workIdx, recoveryIdx, ftp, workTarget, recoveryTarget)
	return summary
}

func buildMainSetReps(laps []LapSummary, workIdx, recoveryIdx []int, ftp, workTarget, recoveryTarget float64) []MainSetRep {
	reps := make([]MainSetRep, 0, len(workIdx))
	for i, w := range workIdx {
		rep := MainSetRep{
			Rep:                 i + 1,
			WorkLap:             laps[w].Index,
			WorkDurationSeconds: laps[w].DurationSeconds,
			WorkPowerWatts:      laps[w].AvgPowerWatts,
		}
		if ftp > 0 {
			rep.WorkPctFTP = (rep.WorkPowerWatts / ftp) * 100.0
		}
		if workTarget > 0 {
			rep.WorkVsTargetPct = ((rep.WorkPowerWatts / workTarget) - 1) * 100
		}

		nextWork := len(laps)
		if i+1 < len(workIdx) {
			nextWork = workIdx[i+1]
		}
		for _, r := range recoveryIdx {
			if r <= w || r >= nextWork {
				continue
			}
			rep.RecoveryLap = laps[r].Index
			rep.RecoveryDurationSeconds = laps[r].DurationSeconds
			rep.RecoveryPowerWatts = laps[r].AvgPowerWatts
			if ftp > 0 {
				rep.RecoveryPctFTP = (rep.RecoveryPowerWatts / ftp) * 100.0
			}
			if recoveryTarget > 0 {
				rep.RecoveryVsTargetPct = ((rep.RecoveryPowerWatts / recoveryTarget) - 1) * 100
			}
			break
		}
		reps = append(reps, rep)
	}
	return reps
}

func buildCanonicalStructureLabel(ws WorkoutStructure) string {
	parts := make([]string, 0, 4)
	for _, b := range ws.Blocks {
		switch b.BlockType {
		case "warmup":
			parts = append(parts, fmt.Sprintf("warmup %s", shortDuration(b.DurationSeconds)))
		case "openers":
			if ws.Openers != nil {
				parts = append(parts, fmt.Sprintf("openers %dx%s/%s", ws.Openers.Reps, shortDuration(ws.Openers.OnDurationSeconds), shortDuration(ws.Openers.OffDurationSeconds)))
			}
		case "main_set":
			if ws.MainSet == nil {
				continue
			}
			if ws.MainSet.WorkPctFTP > 0 {
				parts = append(parts, fmt.Sprintf("%s (%.0f%% FTP)", ws.MainSet.Prescription, ws.MainSet.WorkPctFTP))
			} else {
				parts = append(parts, ws.MainSet.Prescription)
			}
		case "cooldown":
			parts = append(parts, fmt.Sprintf("cooldown %s", shortDuration(b.DurationSeconds)))
		}
	}
	if len(parts) == 0 {
		return "unclassified session structure"
	}
	return strings.Join(parts, " + ")
}

func buildBlock(laps []LapSummary, blockType string, start, end int, description string) WorkoutBlock {
	dur, sumP, sumHR, sumCad, weightP, weightHR, weightCad := 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0
	for i := start; i <= end && i < len(laps); i++ {
		l := laps[i]
		d := l.DurationSeconds
		dur += d
		if l.AvgPowerWatts > 0 {
			sumP += l.AvgPowerWatts * d
			weightP += d
		}
		if l.AvgHeartRate > 0 {
			sumHR += l.AvgHeartRate * d
			weightHR += d
		}
		if l.AvgCadence > 0 {
			sumCad += l.AvgCadence * d
			weightCad += d
		}
	}

	return WorkoutBlock{
		BlockType:          blockType,
		StartLap:           laps[start].Index,
		EndLap:             laps[end].Index,
		StartOffsetSeconds: laps[start].StartOffsetSeconds,
		EndOffsetSeconds:   laps[end].EndOffsetSeconds,
		DurationSeconds:    dur,
		AvgPowerWatts:      safeDiv(sumP, weightP),
		AvgHeartRate:       safeDiv(sumHR, weightHR),
		AvgCadence:         safeDiv(sumCad, weightCad),
		Description:        description,
	}
}

func shortDuration(seconds float64) string {
	s := int(math.Round(seconds))
	switch {
	case s <= 0:
		return "0s"
	case s%60 == 0:
		return fmt.Sprintf("%dm", s/60)
	case s < 60:
		return fmt.Sprintf("%ds", s)
	default:
		return fmt.Sprintf("%dm%02ds", s/60, s%60)
	}
}

func roundToNearest(v, step float64) float64 {
	if v == 0 || step <= 0 {
		return v
	}
	return math.Round(v/step) * step
}

func safeDiv(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

func firstNonZero(values ...float64) float64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
