package specif

import (
	"fmt"
	"math"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
)

// MI scores the association of two terms a and b from Oab (co-occurrences),
// Oa and Ob (occurrences of each) and N (size of the sample).
type MI int

const (
	MIOccs MI = iota
	MIJaccard
	MIDice
	MIDiceLog
	MIPPMI
	MIChi2
	MIG
)

var miNames = [...]string{"occs", "jaccard", "dice", "dicelog", "ppmi", "chi2", "g"}

func (m MI) String() string {
	if m < 0 || int(m) >= len(miNames) {
		return fmt.Sprintf("MI(%d)", int(m))
	}
	return miNames[m]
}

// ParseMI resolves a pair scorer by name, case-insensitively.
func ParseMI(name string) (MI, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range miNames {
		if n == name {
			return MI(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown pair scorer %q", apperrors.ErrInvalidInput, name)
}

// ppmiFloor drops rare pairs and smooths the joint count.
const ppmiFloor = 4

// Score returns the association, 0 when the inputs are degenerate.
func (m MI) Score(oab, oa, ob, n float64) float64 {
	switch m {
	case MIOccs:
		return finite(oab)
	case MIJaccard:
		return finite(oab / (oa + ob - oab))
	case MIDice:
		return finite(2 * oab / (oa + ob))
	case MIDiceLog:
		if oab <= 0 {
			return 0
		}
		return finite(14 + math.Log2(2*oab/(oa+ob)))
	case MIPPMI:
		if oa <= ppmiFloor || ob <= ppmiFloor || oab <= ppmiFloor || n <= 0 {
			return 0
		}
		pmi := math.Log(((oab + ppmiFloor) / n) / ((oa / n) * (ob / n)))
		if pmi < 0 {
			return 0
		}
		return finite(pmi / -math.Log(oab/n))
	case MIChi2:
		if n <= 0 {
			return 0
		}
		obs, exp := contingency(oab, oa, ob, n)
		var sum float64
		for i := range obs {
			if obs[i] == 0 || exp[i] <= 0 {
				continue
			}
			d := obs[i] - exp[i]
			sum += d * d / exp[i]
		}
		if oab < exp[0] {
			sum = -sum
		}
		return finite(sum)
	case MIG:
		if n <= 0 {
			return 0
		}
		obs, exp := contingency(oab, oa, ob, n)
		var sum float64
		for i := range obs {
			sum += xlogxy(obs[i], exp[i])
		}
		if oab < exp[0] {
			sum = -sum
		}
		return finite(2 * sum)
	}
	return 0
}

// contingency returns the observed and expected cells of the 2x2 table
// (ab, a¬b, ¬ab, ¬a¬b).
func contingency(oab, oa, ob, n float64) (obs, exp [4]float64) {
	obs = [4]float64{oab, oa - oab, ob - oab, n - oa - ob + oab}
	exp = [4]float64{
		oa * ob / n,
		oa * (n - ob) / n,
		ob * (n - oa) / n,
		(n - oa) * (n - ob) / n,
	}
	return obs, exp
}
