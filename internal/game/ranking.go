package game

import "sort"

// Standings orders the submission ledger into the final leaderboard: score
// descending, ties broken by time taken ascending. Members who never
// submitted do not appear. The sort is stable, so equal entries keep their
// iteration order.
func Standings(submissions map[string]Submission) []Standing {
	ids := make([]string, 0, len(submissions))
	for id := range submissions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Standing, 0, len(ids))
	for _, id := range ids {
		s := submissions[id]
		out = append(out, Standing{
			Username:  s.Username,
			Score:     s.Score,
			PassedAll: s.PassedAll,
			TimeTaken: s.TimeTaken,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].TimeTaken < out[j].TimeTaken
	})
	return out
}
