package fairness

import (
	"math"
	"math/rand/v2"
	"sort"
)

// Conservative defaults returned for degenerate inputs.
const (
	DefaultParitySingleGroup    = 0.8
	DefaultParityEmptyGroups    = 0.7
	DefaultEqualizedOdds        = 0.6
	DefaultCalibrationMismatch  = 0.6
	DefaultCalibrationNaN       = 0.6
	DefaultCalibrationGroups    = 0.7
	DefaultCalibrationNoBins    = 0.65
	DefaultIndividualNoPairs    = 0.7
	calibrationBins             = 10
	calibrationMinBinSamples    = 5
	individualMaxPairs          = 100
	individualSimilarDistance   = 0.1
	individualLipschitzConstant = 1.5
)

// Pair sampling is seeded so repeated assessments are bit-identical.
const (
	pairSeed1 = 0x64677061697273 // "dgpairs"
	pairSeed2 = 0x6c69707363686e // "lipschn"
)

type groupRate struct {
	key   GroupKey
	n     int
	pos   int
	total int
}

// positiveRates groups predictions by attribute. Every distinct attribute value
// is returned, even when none of its predictions are usable.
func positiveRates(preds []float64, attrs []GroupKey) []groupRate {
	idx := make(map[GroupKey]int)
	var groups []groupRate
	for i, a := range attrs {
		gi, ok := idx[a]
		if !ok {
			gi = len(groups)
			idx[a] = gi
			groups = append(groups, groupRate{key: a})
		}
		if i >= len(preds) || !finite(preds[i]) {
			continue
		}
		groups[gi].n++
		if positive(preds[i]) {
			groups[gi].pos++
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].key < groups[j].key })
	return groups
}

// DemographicParity is min/max of per-group positive-prediction rates.
func DemographicParity(preds []float64, attrs []GroupKey) MetricResult {
	groups := positiveRates(preds, attrs)
	if len(groups) < 2 {
		return degenerate(DefaultParitySingleGroup, "fewer than two groups")
	}
	minRate, maxRate := math.Inf(1), 0.0
	nonEmpty := 0
	for _, g := range groups {
		if g.n == 0 {
			continue
		}
		nonEmpty++
		r := float64(g.pos) / float64(g.n)
		minRate = math.Min(minRate, r)
		maxRate = math.Max(maxRate, r)
	}
	if nonEmpty < 2 {
		return degenerate(DefaultParityEmptyGroups, "fewer than two groups with predictions")
	}
	if maxRate == 0 {
		return computed(1.0)
	}
	return computed(minRate / maxRate)
}

// EqualizedOdds averages the min/max ratios of TPR and FPR across groups that
// have both positive and negative ground-truth labels.
func EqualizedOdds(preds, truth []float64, attrs []GroupKey) MetricResult {
	type counts struct{ tp, fn, fp, tn int }
	n := min(len(preds), len(truth), len(attrs))
	byGroup := make(map[GroupKey]*counts)
	for i := 0; i < n; i++ {
		if !finite(preds[i]) || !finite(truth[i]) {
			continue
		}
		c := byGroup[attrs[i]]
		if c == nil {
			c = &counts{}
			byGroup[attrs[i]] = c
		}
		switch p, t := positive(preds[i]), positive(truth[i]); {
		case t && p:
			c.tp++
		case t && !p:
			c.fn++
		case !t && p:
			c.fp++
		default:
			c.tn++
		}
	}

	var tprs, fprs []float64
	for _, c := range byGroup {
		if c.tp+c.fn == 0 || c.fp+c.tn == 0 {
			continue
		}
		tprs = append(tprs, float64(c.tp)/float64(c.tp+c.fn))
		fprs = append(fprs, float64(c.fp)/float64(c.fp+c.tn))
	}
	if len(tprs) < 2 {
		return degenerate(DefaultEqualizedOdds, "fewer than two groups with both label classes")
	}
	return computed((ratio(tprs) + ratio(fprs)) / 2)
}

// ratio is min/max of rates, 1.0 when every rate is zero.
func ratio(rates []float64) float64 {
	lo, hi := rates[0], rates[0]
	for _, r := range rates[1:] {
		lo = math.Min(lo, r)
		hi = math.Max(hi, r)
	}
	if hi == 0 {
		return 1.0
	}
	return lo / hi
}

// Calibration is 1 minus the mean absolute gap between predicted probability
// and observed outcome, over per-group probability bins with enough samples.
// Without probabilities it falls back to demographic parity.
func Calibration(probs, truth, preds []float64, attrs []GroupKey) MetricResult {
	if len(probs) == 0 {
		r := DemographicParity(preds, attrs)
		r.Reason = "no probabilities; demographic parity used"
		return r
	}
	if len(probs) != len(truth) || len(probs) != len(attrs) {
		return degenerate(DefaultCalibrationMismatch, "probabilities, ground truth and attributes differ in length")
	}
	for i := range probs {
		if math.IsNaN(probs[i]) || math.IsNaN(truth[i]) {
			return degenerate(DefaultCalibrationNaN, "NaN in probabilities or ground truth")
		}
	}

	type bin struct {
		n            int
		sumP, sumAct float64
	}
	bins := make(map[GroupKey]*[calibrationBins]bin)
	for i, p := range probs {
		p = clamp01(p)
		b := int(p * calibrationBins)
		if b >= calibrationBins {
			b = calibrationBins - 1
		}
		g := bins[attrs[i]]
		if g == nil {
			g = &[calibrationBins]bin{}
			bins[attrs[i]] = g
		}
		g[b].n++
		g[b].sumP += p
		if positive(truth[i]) {
			g[b].sumAct++
		}
	}
	if len(bins) < 2 {
		return degenerate(DefaultCalibrationGroups, "fewer than two groups")
	}

	keys := make([]GroupKey, 0, len(bins))
	for k := range bins {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var sumErr float64
	valid := 0
	for _, k := range keys {
		for _, b := range bins[k] {
			if b.n < calibrationMinBinSamples {
				continue
			}
			e := math.Abs(b.sumP/float64(b.n) - b.sumAct/float64(b.n))
			if math.IsNaN(e) {
				return degenerate(DefaultCalibrationNaN, "NaN bin error")
			}
			sumErr += e
			valid++
		}
	}
	if valid == 0 {
		return degenerate(DefaultCalibrationNoBins, "no bin has enough samples")
	}
	return computed(math.Max(0, 1-sumErr/float64(valid)))
}

// IndividualFairness checks the Lipschitz condition on pairs of similar
// individuals. All pairs are compared when there are at most individualMaxPairs
// of them; otherwise a fixed-seed sample of that many pairs is drawn.
func IndividualFairness(features [][]float64, preds []float64) MetricResult {
	n := min(len(features), len(preds))
	if n < 2 {
		return degenerate(DefaultIndividualNoPairs, "fewer than two individuals")
	}
	norm, ok := normalizeFeatures(features[:n])
	if !ok {
		return degenerate(DefaultIndividualNoPairs, "feature rows are empty, ragged or non-finite")
	}

	compared, violations := 0, 0
	check := func(i, j int) {
		if !finite(preds[i]) || !finite(preds[j]) {
			return
		}
		d := distance(norm[i], norm[j])
		if d >= individualSimilarDistance {
			return
		}
		compared++
		if math.Abs(preds[i]-preds[j]) > individualLipschitzConstant*d {
			violations++
		}
	}

	if n*(n-1)/2 <= individualMaxPairs {
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				check(i, j)
			}
		}
	} else {
		rng := rand.New(rand.NewPCG(pairSeed1, pairSeed2))
		for k := 0; k < individualMaxPairs; k++ {
			i := rng.IntN(n)
			j := rng.IntN(n - 1)
			if j >= i {
				j++
			}
			check(i, j)
		}
	}
	if compared == 0 {
		return degenerate(DefaultIndividualNoPairs, "no similar pairs to compare")
	}
	return computed(1 - float64(violations)/float64(compared))
}

// normalizeFeatures min-max scales each dimension to [0,1].
func normalizeFeatures(rows [][]float64) ([][]float64, bool) {
	dims := len(rows[0])
	if dims == 0 {
		return nil, false
	}
	lo := make([]float64, dims)
	hi := make([]float64, dims)
	for d := range lo {
		lo[d], hi[d] = math.Inf(1), math.Inf(-1)
	}
	for _, r := range rows {
		if len(r) != dims {
			return nil, false
		}
		for d, v := range r {
			if !finite(v) {
				return nil, false
			}
			lo[d] = math.Min(lo[d], v)
			hi[d] = math.Max(hi[d], v)
		}
	}
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = make([]float64, dims)
		for d, v := range r {
			if span := hi[d] - lo[d]; span > 0 {
				out[i][d] = (v - lo[d]) / span
			}
		}
	}
	return out, true
}

// distance is Euclidean distance scaled by sqrt(dims), so it lies in [0,1].
func distance(a, b []float64) float64 {
	var sum float64
	for d := range a {
		diff := a[d] - b[d]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(a)))
}
