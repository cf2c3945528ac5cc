// internal/demographic/actuarial.go
package demographic

import (
	"sort"

	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * Actuarial table lookup.
 *
 * Rate resolution order for (age, gender):
 *   1. Exact age, exact gender
 *   2. Exact age, UNISEX
 *   3. Linear interpolation between the two nearest ages with a rate
 *   4. Single nearest known age
 *
 * Table relevance by benefit type: MEDICAL consults morbidity and mortality,
 * DISABILITY consults disability, LIFE consults mortality; an unspecified
 * benefit consults every loaded table. Dental and vision products carry no
 * actuarial component.
 */

// relevantTables selects the loaded tables consulted for a benefit type.
func (c *Calculator) relevantTables(benefitType types.BenefitType) []types.ActuarialTable {
	var wanted map[types.TableType]bool
	switch benefitType {
	case types.BenefitMedical:
		wanted = map[types.TableType]bool{types.TableMorbidity: true, types.TableMortality: true}
	case types.BenefitDisability:
		wanted = map[types.TableType]bool{types.TableDisability: true}
	case types.BenefitLife:
		wanted = map[types.TableType]bool{types.TableMortality: true}
	case types.BenefitNone:
		return c.tables
	default:
		return nil
	}

	var out []types.ActuarialTable
	for _, t := range c.tables {
		if wanted[t.Type] {
			out = append(out, t)
		}
	}
	return out
}

// tableRate resolves a rate for (age, gender) with fallback and interpolation.
// Returns the neutral 1.0 when the table holds no usable rates.
func tableRate(table types.ActuarialTable, age int, gender types.Gender) float64 {
	if rate, ok := rateAt(table, age, gender); ok {
		return rate
	}

	known := agesWithRate(table, gender)
	if len(known) == 0 {
		return 1.0
	}

	// Nearest neighbors below and above the requested age
	idx := sort.SearchInts(known, age)
	switch {
	case idx == 0:
		rate, _ := rateAt(table, known[0], gender)
		return rate
	case idx == len(known):
		rate, _ := rateAt(table, known[len(known)-1], gender)
		return rate
	default:
		lowAge, highAge := known[idx-1], known[idx]
		lowRate, _ := rateAt(table, lowAge, gender)
		highRate, _ := rateAt(table, highAge, gender)
		span := float64(highAge - lowAge)
		frac := float64(age-lowAge) / span
		return lowRate + (highRate-lowRate)*frac
	}
}

// rateAt reads the rate for an exact age, falling back to UNISEX.
func rateAt(table types.ActuarialTable, age int, gender types.Gender) (float64, bool) {
	byGender, ok := table.Rates[age]
	if !ok {
		return 0, false
	}
	if rate, ok := byGender[gender]; ok {
		return rate, true
	}
	if rate, ok := byGender[types.GenderUnisex]; ok {
		return rate, true
	}
	return 0, false
}

// agesWithRate lists ages holding a usable rate for the gender, ascending.
func agesWithRate(table types.ActuarialTable, gender types.Gender) []int {
	var ages []int
	for age := range table.Rates {
		if _, ok := rateAt(table, age, gender); ok {
			ages = append(ages, age)
		}
	}
	sort.Ints(ages)
	return ages
}
