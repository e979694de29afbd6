package report

import (
	"fmt"
	"io"

	"github.com/logrusorgru/aurora"

	"blackjack-mdp/internal/blackjack"
	"blackjack-mdp/internal/mdp"
)

// StrategyGrid prints the hard or soft half of policy as a table of player
// totals (rows, high to low) against dealer upcards (columns, ace first).
// Hits are green and stands red when color is set; states missing from
// policy print as a dot.
func StrategyGrid(w io.Writer, policy map[mdp.State]blackjack.Action, usable, color bool) error {
	au := aurora.NewAurora(color)
	label := "hard"
	if usable {
		label = "soft"
	}
	if _, err := fmt.Fprintf(w, "%s totals\n    ", label); err != nil {
		return err
	}
	for d := mdp.MinDealer; d <= mdp.MaxDealer; d++ {
		fmt.Fprintf(w, "%2s ", upcardLabel(d))
	}
	fmt.Fprintln(w)
	for p := mdp.MaxPlayer; p >= mdp.MinPlayer; p-- {
		fmt.Fprintf(w, "%3d ", p)
		for d := mdp.MinDealer; d <= mdp.MaxDealer; d++ {
			action, ok := policy[mdp.State{Player: p, Dealer: d, UsableAce: usable}]
			switch {
			case !ok:
				fmt.Fprint(w, " . ")
			case action == blackjack.Hit:
				fmt.Fprint(w, au.Green(" H "))
			default:
				fmt.Fprint(w, au.Red(" S "))
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

func upcardLabel(d int) string {
	if d == blackjack.Ace {
		return "A"
	}
	return fmt.Sprintf("%d", d)
}
