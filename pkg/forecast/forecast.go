package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/dfcarvalho/jira-epic-helper/pkg/types"
)

// DefaultSimulations is the trial count used when Params leaves it unset.
const DefaultSimulations = 10000

var (
	// ErrEmptyInput reports an empty epic collection.
	ErrEmptyInput = errors.New("forecast: no epic data provided")
	// ErrNoPlanningData reports that no epic is tagged to the planning cycle.
	ErrNoPlanningData = errors.New("forecast: no epics found for planning cycle")
	// ErrNoSamples reports that no valid duration estimate survived.
	ErrNoSamples = errors.New("forecast: no valid estimates for planning cycle")
	// ErrNoDevelopers reports a non-positive developer count.
	ErrNoDevelopers = errors.New("forecast: total developers must be greater than zero")
	// ErrNegativeDaysOut reports a negative days-out-of-team value.
	ErrNegativeDaysOut = errors.New("forecast: days out of team cannot be negative")
)

// Params configures a simulation run.
type Params struct {
	PlanningCycle   string
	CycleStart      time.Time
	CycleEnd        time.Time
	TotalDevelopers int
	DaysOutOfTeam   int
	Simulations     int
}

// Stats are the historical throughput statistics the per-item estimates are
// adjusted with.
type Stats struct {
	HistoricalMean float64
	HistoricalStd  float64
	AdjustmentMean float64
	AdjustmentStd  float64
}

// HistoryRecord is one completed item with known actuals.
type HistoryRecord struct {
	ExecutedDays float64
	DevsUsed     float64
	DevsPlanned  float64
}

// Result is the outcome of a Monte Carlo run, in developer-days.
type Result struct {
	Items             int     `json:"items"`
	WorkingDays       int     `json:"working_days"`
	Capacity          float64 `json:"capacity"`
	ProbabilityOnTime float64 `json:"probability_on_time"`
	AvgOverdueDays    float64 `json:"avg_overdue_days"`
	P50               float64 `json:"p50"`
	P85               float64 `json:"p85"`
	P95               float64 `json:"p95"`
	Simulations       int     `json:"simulations"`
}

// StatsFromHistory derives duration and developer-allocation statistics from
// completed items. An empty history yields the neutral (0, 0, 1, 0): no
// duration noise, allocation taken at face value. A single record gives no
// usable duration spread either, so the duration pair degrades to (0, 0).
func StatsFromHistory(records []HistoryRecord) Stats {
	if len(records) == 0 {
		return Stats{AdjustmentMean: 1}
	}

	executed := make([]float64, len(records))
	ratios := make([]float64, len(records))
	for i, r := range records {
		executed[i] = r.ExecutedDays
		ratios[i] = r.DevsUsed / r.DevsPlanned
	}

	s := Stats{}
	histMean := stat.Mean(executed, nil)
	histStd := stat.StdDev(executed, nil)
	switch {
	case math.IsNaN(histStd):
		// single record, no spread to learn from
	case histStd == 0:
		s.HistoricalMean, s.HistoricalStd = histMean, 1
	default:
		s.HistoricalMean, s.HistoricalStd = histMean, histStd
	}

	s.AdjustmentMean = stat.Mean(ratios, nil)
	if adjStd := stat.StdDev(ratios, nil); !math.IsNaN(adjStd) {
		s.AdjustmentStd = adjStd
	}
	return s
}

// SamplePool derives the per-item expected-duration pool for the planning
// set. Items with a full three-point estimate use PERT; items with only a
// planned duration fall back to it; items with neither contribute nothing.
// Each estimate gets one fresh historical-noise draw (when the history has a
// meaningful spread) and is divided by the sampled effective developer
// allocation. Non-finite samples are dropped.
func SamplePool(planning []types.Epic, s Stats, rng *rand.Rand) []float64 {
	pool := make([]float64, 0, len(planning))
	for i := range planning {
		e := &planning[i]

		devsPlanned := 1.0
		if e.DevsPlanned != nil && *e.DevsPlanned > 0 {
			devsPlanned = *e.DevsPlanned
		}
		adjustedDevs := devsPlanned * (s.AdjustmentMean + normDraw(rng, 0, s.AdjustmentStd))

		var estimate float64
		switch {
		case e.BestEstimate != nil && e.WorstEstimate != nil && e.PlannedDays != nil:
			estimate = (*e.BestEstimate + 4**e.PlannedDays + *e.WorstEstimate) / 6
		case e.PlannedDays != nil:
			estimate = *e.PlannedDays
		default:
			continue
		}
		if s.HistoricalStd > 0 {
			estimate += normDraw(rng, s.HistoricalMean, s.HistoricalStd)
		}
		estimate /= math.Max(adjustedDevs, 1)

		if math.IsNaN(estimate) || math.IsInf(estimate, 0) {
			continue
		}
		pool = append(pool, estimate)
	}
	return pool
}

func normDraw(rng *rand.Rand, mu, sigma float64) float64 {
	if sigma <= 0 {
		return mu
	}
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: rng}.Rand()
}

// Run executes the trial loop: each trial draws items samples with
// replacement from the already-computed pool (no fresh PERT draws), sums
// them, and the totals are reduced to the reportable result.
func Run(pool []float64, items int, capacity float64, simulations int, rng *rand.Rand) Result {
	if simulations <= 0 {
		simulations = DefaultSimulations
	}
	if len(pool) == 0 {
		return Result{Capacity: capacity, Simulations: simulations}
	}
	totals := make([]float64, simulations)
	for i := range totals {
		var total float64
		for j := 0; j < items; j++ {
			total += pool[rng.Intn(len(pool))]
		}
		totals[i] = total
	}

	var onTime int
	var overdueSum float64
	var overdueCount int
	for _, total := range totals {
		if total <= capacity {
			onTime++
		} else {
			overdueSum += total - capacity
			overdueCount++
		}
	}
	avgOverdue := 0.0
	if overdueCount > 0 {
		avgOverdue = overdueSum / float64(overdueCount)
	}

	sort.Float64s(totals)
	return Result{
		Capacity:          capacity,
		ProbabilityOnTime: float64(onTime) / float64(simulations),
		AvgOverdueDays:    avgOverdue,
		P50:               stat.Quantile(0.50, stat.Empirical, totals, nil),
		P85:               stat.Quantile(0.85, stat.Empirical, totals, nil),
		P95:               stat.Quantile(0.95, stat.Empirical, totals, nil),
		Simulations:       simulations,
	}
}

// Simulate runs the full forecast over an epic collection: the subset tagged
// to the planning cycle is the planning set, every epic with known actuals
// feeds the historical statistics.
func Simulate(epics []types.Epic, params Params, calendar WorkdayCalendar, rng *rand.Rand) (*Result, error) {
	if len(epics) == 0 {
		return nil, ErrEmptyInput
	}

	var planning []types.Epic
	var history []HistoryRecord
	for _, e := range epics {
		if e.FirstFixVersion == params.PlanningCycle {
			planning = append(planning, e)
		}
		if e.ExecutedDays != nil && e.DevsUsed != nil && e.DevsPlanned != nil && *e.DevsPlanned > 0 {
			history = append(history, HistoryRecord{
				ExecutedDays: *e.ExecutedDays,
				DevsUsed:     *e.DevsUsed,
				DevsPlanned:  *e.DevsPlanned,
			})
		}
	}
	if len(planning) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoPlanningData, params.PlanningCycle)
	}

	if params.TotalDevelopers <= 0 {
		return nil, ErrNoDevelopers
	}
	if params.DaysOutOfTeam < 0 {
		return nil, ErrNegativeDaysOut
	}

	pool := SamplePool(planning, StatsFromHistory(history), rng)
	if len(pool) == 0 {
		return nil, ErrNoSamples
	}

	workdays := calendar.WorkdaysInRange(params.CycleStart, params.CycleEnd)
	capacity := float64(workdays*params.TotalDevelopers - params.DaysOutOfTeam)

	result := Run(pool, len(planning), capacity, params.Simulations, rng)
	result.Items = len(planning)
	result.WorkingDays = workdays
	return &result, nil
}
