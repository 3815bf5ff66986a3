package sim

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/epidemic-sim/sim/internal/testutil"
	"github.com/inference-sim/epidemic-sim/sim/ode"
	"github.com/inference-sim/epidemic-sim/sim/policy"
	"github.com/inference-sim/epidemic-sim/sim/trace"
)

func referenceModel(t *testing.T) *Model {
	t.Helper()
	m, err := NewModel(NewParams(testutil.RefPopulation, testutil.RefInitialInfected, testutil.RefBeta, testutil.RefGamma))
	require.NoError(t, err)
	return m
}

func referenceRequest(mode Mode) RunRequest {
	return NewRunRequest(mode, testutil.RefStopTime, testutil.RefSampleCount)
}

func stepCadence(req RunRequest) RunRequest {
	req.Cadence = policy.CadenceStep
	return req
}

func assertConserved(t *testing.T, traj *Trajectory, relTol float64) {
	t.Helper()
	N := traj.Params.Population
	for k := 0; k < traj.Len(); k++ {
		if math.Abs(traj.Population(k)-N)/N > relTol {
			t.Fatalf("population drift at sample %d (t=%g): S+I+R=%v, N=%v", k, traj.Times[k], traj.Population(k), N)
		}
	}
}

func TestRun_NoneMode_ConservesPopulation(t *testing.T) {
	// GIVEN the reference model
	m := referenceModel(t)

	// WHEN run without intervention
	traj, err := m.Run(context.Background(), referenceRequest(ModeNone))

	// THEN S+I+R = N at every sample within 1e-6 relative
	require.NoError(t, err)
	assertConserved(t, traj, 1e-6)
}

func TestRun_NoneMode_SampledOnUniformGrid(t *testing.T) {
	m := referenceModel(t)
	traj, err := m.Run(context.Background(), referenceRequest(ModeNone))
	require.NoError(t, err)

	require.Equal(t, testutil.RefSampleCount, traj.Len())
	assert.Equal(t, 0.0, traj.Times[0])
	assert.Equal(t, testutil.RefStopTime, traj.Times[traj.Len()-1])
	assert.Equal(t, m.Params().InitialState(), []float64{traj.S[0], traj.I[0], traj.R[0]})
	assert.Equal(t, -1, traj.EventIndex)
	assert.False(t, traj.MandateFired)
	assert.Empty(t, traj.TriggerTimes)
	for k := 1; k < traj.Len(); k++ {
		require.Greater(t, traj.Times[k], traj.Times[k-1])
	}
}

func TestRun_NoneMode_SNonIncreasingRNonDecreasing(t *testing.T) {
	m := referenceModel(t)
	traj, err := m.Run(context.Background(), referenceRequest(ModeNone))
	require.NoError(t, err)

	slack := 1e-6 * testutil.RefPopulation
	testutil.AssertNonIncreasing(t, "S", traj.S, slack)
	testutil.AssertNonDecreasing(t, "R", traj.R, slack)
	for _, v := range traj.VaccinationRate {
		require.Equal(t, 0.0, v)
	}
}

func TestRun_NoneMode_PeakMatchesAnalyticSIR(t *testing.T) {
	// The SIR peak satisfies I_max = N - S_peak - N/R0 * ln(S0/S_peak) with
	// S_peak = N/R0 (plus R0 = 0 at start).
	m := referenceModel(t)
	traj, err := m.Run(context.Background(), referenceRequest(ModeNone))
	require.NoError(t, err)

	p := m.Params()
	s0, i0 := p.Population-p.InitialInfected, p.InitialInfected
	sPeak := p.Population / p.R0()
	want := s0 + i0 - sPeak - sPeak*math.Log(s0/sPeak)

	summary := traj.Summarize()
	testutil.AssertFloat64Equal(t, "peak infected", want, summary.PeakInfected, 1e-2)
}

func TestRun_LotteryEvaluationCadence_ReferenceScenario_IntegrationFailure(t *testing.T) {
	// GIVEN the reference parameters where I crosses the first threshold
	// while Rt > 1: the rate then compounds by 1.5 on every derivative
	// evaluation, including rejected attempts, and the adaptive solver
	// cannot keep up
	m := referenceModel(t)

	// WHEN run with the default (evaluation) cadence
	traj, err := m.Run(context.Background(), referenceRequest(ModeLottery))

	// THEN the failure surfaces unchanged and no partial trajectory is returned
	assert.Nil(t, traj)
	require.ErrorIs(t, err, ErrIntegrationFailure)
	assert.NotErrorIs(t, err, ErrInvalidSimulationParameters)
}

func TestRun_LotteryEvaluationCadence_AppliesPolicyOnEveryEvaluation(t *testing.T) {
	// GIVEN Rt(0) < 1, so the epidemic dies out without crossing a threshold
	m, err := NewModel(NewParams(10000, 10, 0.05, 0.1))
	require.NoError(t, err)

	// WHEN run in lottery mode
	traj, err := m.Run(context.Background(), NewRunRequest(ModeLottery, 50, 100))

	// THEN the policy ran once per right-hand side evaluation, not once per sample
	require.NoError(t, err)
	assert.Equal(t, traj.Stats.Evaluations, traj.Stats.PolicyEvaluations)
	assert.Greater(t, traj.Stats.PolicyEvaluations, traj.Stats.Steps)
	assert.Empty(t, traj.TriggerTimes)
	for _, v := range traj.VaccinationRate {
		require.Equal(t, 0.0, v)
	}
}

func TestRun_LotteryStepCadence_ReferenceScenario(t *testing.T) {
	// GIVEN the reference model with the step cadence
	m := referenceModel(t)

	// WHEN run in lottery mode
	traj, err := m.Run(context.Background(), stepCadence(referenceRequest(ModeLottery)))

	// THEN the run completes, conserves mass and v never decreases
	require.NoError(t, err)
	require.Equal(t, testutil.RefSampleCount, traj.Len())
	assertConserved(t, traj, 1e-6)
	testutil.AssertNonDecreasing(t, "vaccination rate", traj.VaccinationRate, 0)
	assert.Greater(t, traj.VaccinationRate[traj.Len()-1], 0.0)

	// AND the policy advanced once at t=0 and once per accepted step
	assert.Equal(t, traj.Stats.Steps+1, traj.Stats.PolicyEvaluations)

	// AND every threshold crossing is recorded in the trace
	require.NotEmpty(t, traj.TriggerTimes)
	assert.Equal(t, traj.TriggerTimes, traj.Trace.Times(trace.KindLotteryThreshold))
	summary := traj.Summarize()
	assert.Equal(t, len(traj.TriggerTimes), summary.Policy.LotteryTriggers)
	assert.False(t, summary.Policy.MandateFired)
}

func TestRun_LotteryStepCadence_VaccinationLowersPeak(t *testing.T) {
	m := referenceModel(t)
	none, err := m.Run(context.Background(), referenceRequest(ModeNone))
	require.NoError(t, err)
	lottery, err := m.Run(context.Background(), stepCadence(referenceRequest(ModeLottery)))
	require.NoError(t, err)

	assert.Less(t, lottery.Summarize().PeakInfected, none.Summarize().PeakInfected)
}

func TestRun_LotteryEuler_CadencesAgree(t *testing.T) {
	// GIVEN forward Euler with unit steps (one evaluation per step)
	m := referenceModel(t)
	req := referenceRequest(ModeLottery)
	req.SampleCount = 201
	req.Solver = ode.NewEuler(1)

	// WHEN run with each cadence
	byEval, err := m.Run(context.Background(), req)
	require.NoError(t, err)
	byStep, err := m.Run(context.Background(), stepCadence(req))
	require.NoError(t, err)

	// THEN both produce the same trajectory and triggers
	assert.Equal(t, byEval.Times, byStep.Times)
	assert.Equal(t, byEval.S, byStep.S)
	assert.Equal(t, byEval.I, byStep.I)
	assert.Equal(t, byEval.R, byStep.R)
	assert.Equal(t, byEval.VaccinationRate, byStep.VaccinationRate)
	assert.Equal(t, byEval.TriggerTimes, byStep.TriggerTimes)
	testutil.AssertNonDecreasing(t, "vaccination rate", byEval.VaccinationRate, 0)
}

func TestRun_MandateMode_NoEventBeforeDelayWhenRtBelowOne(t *testing.T) {
	// GIVEN Rt(0) < 1 and a span shorter than the mandate delay
	m, err := NewModel(NewParams(10000, 10, 0.05, 0.1))
	require.NoError(t, err)

	// WHEN run in mandate and in none mode
	mandate, err := m.Run(context.Background(), NewRunRequest(ModeMandate, 20, 100))
	require.NoError(t, err)
	none, err := m.Run(context.Background(), NewRunRequest(ModeNone, 20, 100))
	require.NoError(t, err)

	// THEN no event fires and the trajectory is the plain SIR one
	assert.False(t, mandate.MandateFired)
	assert.Equal(t, -1, mandate.EventIndex)
	assert.Equal(t, 100, mandate.Len())
	assert.Equal(t, none.Times, mandate.Times)
	assert.Equal(t, none.S, mandate.S)
	assert.Equal(t, none.I, mandate.I)
	assert.Equal(t, none.R, mandate.R)
	pre, post := mandate.Segments()
	assert.Len(t, pre, 100)
	assert.Nil(t, post)
}

func TestRun_MandateMode_ReferenceScenario(t *testing.T) {
	// GIVEN N=10000, i0=10, beta=0.35, gamma=0.1 over (200, 500)
	m := referenceModel(t)

	// WHEN run in mandate mode
	traj, err := m.Run(context.Background(), referenceRequest(ModeMandate))
	require.NoError(t, err)

	// THEN the mandate fires at the delay, while Rt is still above one
	require.True(t, traj.MandateFired)
	assert.GreaterOrEqual(t, traj.MandateTime, DefaultMandateDelay)
	assert.InDelta(t, DefaultMandateDelay, traj.MandateTime, 1e-6)

	k := traj.EventIndex
	require.Greater(t, k, 0)
	assert.Equal(t, traj.MandateTime, traj.Times[k-1])
	assert.Equal(t, traj.MandateTime, traj.Times[k])
	assert.GreaterOrEqual(t, m.Params().Rt(traj.S[k-1]), 1.0)

	// AND the first post-event sample has S floor-halved and R raised by the same amount
	sEvent := traj.S[k-1]
	assert.Equal(t, math.Floor(sEvent/2), traj.S[k])
	assert.InDelta(t, sEvent-traj.S[k], traj.R[k]-traj.R[k-1], 1e-9)
	assert.Equal(t, traj.I[k-1], traj.I[k])

	// AND grid points before the event plus the boundary, then a fresh grid of 500
	// points over [t_event, 200]
	assert.Equal(t, 64, k)
	assert.Equal(t, k+testutil.RefSampleCount, traj.Len())
	assert.Equal(t, testutil.RefStopTime, traj.Times[traj.Len()-1])

	// AND the only repeated timestamp is the splice
	for j := 1; j < traj.Len(); j++ {
		if j == k {
			continue
		}
		require.Greater(t, traj.Times[j], traj.Times[j-1], "sample %d", j)
	}

	// AND mass is conserved across the discontinuity
	assertConserved(t, traj, 1e-6)

	// AND the mandate is the single trace record
	require.Len(t, traj.Trace.Records, 1)
	rec := traj.Trace.Records[0]
	assert.Equal(t, trace.KindMandate, rec.Kind)
	assert.Equal(t, traj.MandateTime, rec.Time)
	assert.InDelta(t, sEvent-traj.S[k], rec.Moved, 1e-9)

	pre, post := traj.Segments()
	assert.Len(t, pre, k)
	assert.Len(t, post, testutil.RefSampleCount)
}

func TestRun_MandateMode_EventAtSpanEnd_AppendsTransformedState(t *testing.T) {
	// GIVEN a span that ends exactly at the mandate delay while Rt > 1
	m := referenceModel(t)
	traj, err := m.Run(context.Background(), NewRunRequest(ModeMandate, DefaultMandateDelay, 11))
	require.NoError(t, err)

	if !traj.MandateFired {
		t.Skip("event not detected at the final instant")
	}
	k := traj.EventIndex
	assert.Equal(t, traj.Len()-1, k)
	assert.Equal(t, math.Floor(traj.S[k-1]/2), traj.S[k])
}

func TestRun_InvalidRequest_FailsBeforeIntegration(t *testing.T) {
	m := referenceModel(t)
	tests := []struct {
		name string
		req  RunRequest
	}{
		{"one sample", NewRunRequest(ModeNone, 200, 1)},
		{"zero stop time", NewRunRequest(ModeMandate, 0, 500)},
		{"negative stop time", NewRunRequest(ModeLottery, -1, 500)},
		{"unknown mode", NewRunRequest("quarantine", 200, 500)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			traj, err := m.Run(context.Background(), tt.req)
			assert.Nil(t, traj)
			assert.ErrorIs(t, err, ErrInvalidSimulationParameters)
		})
	}
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	traj, err := referenceModel(t).Run(ctx, referenceRequest(ModeNone))
	assert.Nil(t, traj)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_Determinism_IdenticalTrajectories(t *testing.T) {
	m := referenceModel(t)
	requests := map[string]RunRequest{
		"none":         referenceRequest(ModeNone),
		"mandate":      referenceRequest(ModeMandate),
		"lottery-step": stepCadence(referenceRequest(ModeLottery)),
	}
	for name, req := range requests {
		t.Run(name, func(t *testing.T) {
			a, err := m.Run(context.Background(), req)
			require.NoError(t, err)
			b, err := m.Run(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, a, b)
		})
	}

	t.Run("lottery-evaluation", func(t *testing.T) {
		_, errA := m.Run(context.Background(), referenceRequest(ModeLottery))
		_, errB := m.Run(context.Background(), referenceRequest(ModeLottery))
		require.Error(t, errA)
		assert.Equal(t, errA.Error(), errB.Error())
	})
}

func TestRun_ConcurrentRuns_MatchSequential(t *testing.T) {
	// GIVEN one model shared by goroutines running different modes
	m := referenceModel(t)
	requests := []RunRequest{
		referenceRequest(ModeNone),
		referenceRequest(ModeMandate),
		stepCadence(referenceRequest(ModeLottery)),
	}
	sequential := make([]*Trajectory, len(requests))
	for i, req := range requests {
		traj, err := m.Run(context.Background(), req)
		require.NoError(t, err)
		sequential[i] = traj
	}

	// WHEN run concurrently
	concurrent := make([]*Trajectory, len(requests))
	errs := make([]error, len(requests))
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req RunRequest) {
			defer wg.Done()
			concurrent[i], errs[i] = m.Run(context.Background(), req)
		}(i, req)
	}
	wg.Wait()

	// THEN results are identical to the sequential ones
	for i := range requests {
		require.NoError(t, errs[i])
		assert.Equal(t, sequential[i], concurrent[i])
	}
}
