package dataset

import (
	"math"
	"sort"
)

// populationBoost is the extra weight per additional household member.
const populationBoost = 0.25

// VotingWeight scores one preference: closer spaces and larger households
// weigh more. The result is rounded to four decimals.
func VotingWeight(preference, distance float64, population int) float64 {
	if population < 1 {
		population = 1
	}
	w := preference * (1 / (1 + distance)) * (1 + populationBoost*float64(population-1))
	return math.Round(w*1e4) / 1e4
}

// ComputeVotingWeights derives one vote per space, resident and preferred
// activity. Residents without a persona, or whose persona has no
// preferences, cast no votes. Output follows distance table order, then
// activity name.
func ComputeVotingWeights(distances *Distances, personas map[string]Persona, prefs PersonaActivities) []Vote {
	var votes []Vote
	for _, space := range distances.Spaces() {
		for _, resident := range distances.Residents() {
			d, ok := distances.Get(space, resident)
			if !ok {
				continue
			}
			p, ok := personas[resident]
			if !ok {
				continue
			}
			activities := prefs[p.Persona]
			names := make([]string, 0, len(activities))
			for a := range activities {
				names = append(names, a)
			}
			sort.Strings(names)
			for _, a := range names {
				votes = append(votes, Vote{
					Resident: resident,
					Space:    space,
					Activity: a,
					Distance: d,
					Weight:   VotingWeight(activities[a], d, p.Population),
				})
			}
		}
	}
	return votes
}
