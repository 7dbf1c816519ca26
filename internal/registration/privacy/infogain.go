package privacy

import (
	"math"
	"time"

	"registrar/internal/registration/models"
)

// DataLayout is the reporting shape of one trigger data value: the windows a
// report for it can land in and the most reports it can produce.
type DataLayout struct {
	TriggerData uint64
	Windows     []time.Duration
	Cap         int
}

// Layouts expands src into one DataLayout per trigger data value, along with
// the cap on total reports across all of them.
func Layouts(src *models.Source) ([]DataLayout, int) {
	maxReports := src.MaxReports()
	defaultWindows := src.ReportWindowEnds()

	if !src.HasTriggerSpecs() {
		n := src.TriggerDataCardinality()
		out := make([]DataLayout, 0, n)
		for td := range n {
			out = append(out, DataLayout{TriggerData: uint64(td), Windows: defaultWindows, Cap: maxReports})
		}
		return out, maxReports
	}

	var out []DataLayout
	for _, spec := range src.Flex.TriggerSpecs {
		windows := defaultWindows
		if spec.Windows != nil {
			windows = spec.Windows.Ends
		}
		for _, td := range spec.TriggerData {
			out = append(out, DataLayout{
				TriggerData: uint64(td),
				Windows:     windows,
				Cap:         min(len(spec.SummaryBuckets), maxReports),
			})
		}
	}
	return out, maxReports
}

// NumStates counts the distinct report outputs src can produce: every way of
// distributing at most MaxReports reports over (trigger data × window) slots,
// with each trigger-spec group capped by its bucket count.
func NumStates(src *models.Source) float64 {
	layouts, maxReports := Layouts(src)
	dp := make([]float64, maxReports+1)
	dp[0] = 1
	for _, l := range layouts {
		next := make([]float64, maxReports+1)
		for used, ways := range dp {
			if ways == 0 {
				continue
			}
			for j := 0; j <= l.Cap && used+j <= maxReports; j++ {
				next[used+j] += ways * Multisets(len(l.Windows), j)
			}
		}
		dp = next
	}
	total := 0.0
	for _, ways := range dp {
		total += ways
	}
	return total
}

// Multisets is the number of ways to place j indistinguishable reports into
// n windows.
func Multisets(n, j int) float64 {
	if j == 0 {
		return 1
	}
	if n == 0 {
		return 0
	}
	return binomial(n+j-1, j)
}

func binomial(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	k = min(k, n-k)
	result := 1.0
	for i := 1; i <= k; i++ {
		result = result * float64(n-k+i) / float64(i)
	}
	return result
}

// FlipProbability is the k-ary randomized response probability of replacing
// the true output at privacy parameter epsilon.
func FlipProbability(numStates, epsilon float64) float64 {
	return numStates / (numStates + math.Exp(epsilon) - 1)
}

// InformationGain is the capacity, in bits, of the k-ary randomized response
// channel over numStates outputs at epsilon.
func InformationGain(numStates, epsilon float64) float64 {
	if numStates <= 1 {
		return 0
	}
	p := FlipProbability(numStates, epsilon)
	other := p / numStates
	truthful := 1 - p + other
	gain := math.Log2(numStates)
	if truthful > 0 {
		gain += truthful * math.Log2(truthful)
	}
	if other > 0 {
		gain += (numStates - 1) * other * math.Log2(other)
	}
	return gain
}
