package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/pable/go-nfl-metrics/internal/model"
	"github.com/pable/go-nfl-metrics/internal/pipeline"
	"github.com/pable/go-nfl-metrics/internal/reconcile"
	"github.com/pable/go-nfl-metrics/internal/storage"
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignRight},
		},
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
	}))
}

// opt formats a nullable float, "—" for null.
func opt(v *float64, prec int) string {
	if v == nil {
		return "—"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

// PrintSeasonBanner prints the header line that precedes a season's stages.
func PrintSeasonBanner(w io.Writer, season int) {
	fmt.Fprintf(w, "\n%s\n  Season %d\n%s\n", strings.Repeat("=", 40), season, strings.Repeat("=", 40))
}

// PrintRunSummary prints one row per season followed by the success count
// and the failed seasons, if any.
func PrintRunSummary(w io.Writer, run pipeline.Run) {
	table := newTable(w)
	table.Header("SEASON", "PLAYS", "NEW", "PLAYERS", "GAME_STATS", "SEASONAL", "WEEKLY_EPA", "CPOE", "MISMATCH", "STATUS")
	for _, s := range run.Seasons {
		status := "ok"
		switch {
		case !s.OK():
			status = "FAILED"
		case len(s.Warnings) > 0:
			status = "warn"
		}
		seasonal := strconv.Itoa(s.Seasonal)
		if s.SeasonalStrategy != "" {
			seasonal += " (" + s.SeasonalStrategy + ")"
		}
		table.Append(
			strconv.Itoa(s.Season),
			strconv.Itoa(s.PlaysFetched),
			strconv.Itoa(s.PlaysInserted),
			strconv.Itoa(s.Players),
			strconv.Itoa(s.GameStats),
			seasonal,
			strconv.Itoa(s.WeeklyEPA),
			strconv.Itoa(s.CPOE),
			strconv.Itoa(len(s.Mismatches)),
			status,
		)
	}
	table.Render()

	fmt.Fprintf(w, "\nSuccessful: %d/%d\n", run.Succeeded(), len(run.Seasons))
	if failed := run.Failed(); len(failed) > 0 {
		parts := make([]string, len(failed))
		for i, s := range failed {
			parts[i] = strconv.Itoa(s)
		}
		fmt.Fprintf(w, "Failed seasons: %s\n", strings.Join(parts, ", "))
	}
	for _, s := range run.Seasons {
		if s.Error != "" {
			fmt.Fprintf(w, "  %d: %s\n", s.Season, s.Error)
		}
		for _, warn := range s.Warnings {
			fmt.Fprintf(w, "  %d warning: %s\n", s.Season, warn)
		}
	}
}

// PrintMismatches prints reconciliation mismatches. names maps player ids to
// display names; missing ids print the numeric id.
func PrintMismatches(w io.Writer, season int, ms []reconcile.Mismatch, names map[int64]string) {
	if len(ms) == 0 {
		fmt.Fprintf(w, "Season %d: weekly and seasonal EPA agree within %.1f.\n", season, reconcile.Tolerance)
		return
	}
	fmt.Fprintf(w, "Season %d: %d mismatches above %.1f\n", season, len(ms), reconcile.Tolerance)
	table := newTable(w)
	table.Header("PLAYER", "ROLE", "WEEKLY_SUM", "SEASONAL", "DIFF")
	for _, m := range ms {
		name, ok := names[m.PlayerID]
		if !ok {
			name = strconv.FormatInt(m.PlayerID, 10)
		}
		table.Append(
			name,
			m.Role,
			fmt.Sprintf("%.2f", m.Weekly),
			fmt.Sprintf("%.2f", m.Seasonal),
			fmt.Sprintf("%+.2f", m.Diff()),
		)
	}
	table.Render()
}

// PrintHealth prints the registry health snapshot.
func PrintHealth(w io.Writer, h storage.Health) {
	table := newTable(w)
	table.Header("CHECK", "VALUE")
	table.Append("total players", strconv.Itoa(h.TotalPlayers))
	table.Append("players with game stats", strconv.Itoa(h.PlayersWithStats))
	table.Append("duplicate external ids", strconv.Itoa(h.DuplicateExternalIDs))
	table.Append("duplicate names", strconv.Itoa(h.DuplicateNames))
	table.Render()

	if h.Healthy() {
		fmt.Fprintln(w, "\nHEALTHY")
	} else {
		fmt.Fprintln(w, "\nUNHEALTHY: duplicate external ids present")
	}
}

// PrintSeasonCounts prints per-season row counts.
func PrintSeasonCounts(w io.Writer, counts []storage.SeasonCount) {
	table := newTable(w)
	table.Header("SEASON", "PLAYS", "PLAYER_STATS", "GAME_STATS", "ADVANCED")
	for _, c := range counts {
		table.Append(
			strconv.Itoa(c.Season),
			strconv.Itoa(c.Plays),
			strconv.Itoa(c.PlayerSeasonStats),
			strconv.Itoa(c.GameStats),
			strconv.Itoa(c.AdvancedMetrics),
		)
	}
	table.Render()
}

// PrintPurge prints the rows removed from each table.
func PrintPurge(w io.Writer, season int, c storage.PurgeCounts) {
	fmt.Fprintf(w, "Purged season %d:\n", season)
	table := newTable(w)
	table.Header("TABLE", "ROWS")
	table.Append("game_stats", strconv.FormatInt(c.GameStats, 10))
	table.Append("player_season_stats", strconv.FormatInt(c.PlayerSeasonStats, 10))
	table.Append("advanced_metrics", strconv.FormatInt(c.AdvancedMetrics, 10))
	table.Append("plays", strconv.FormatInt(c.Plays, 10))
	table.Render()
}

// PrintQuery prints the stringified result of an ad-hoc query.
func PrintQuery(w io.Writer, cols []string, rows [][]string) {
	table := newTable(w)
	colsAny := make([]any, len(cols))
	for i, c := range cols {
		colsAny[i] = c
	}
	table.Header(colsAny...)
	for _, row := range rows {
		rowAny := make([]any, len(row))
		for i, v := range row {
			rowAny[i] = v
		}
		table.Append(rowAny...)
	}
	table.Render()
	fmt.Fprintf(w, "\n(%d rows)\n", len(rows))
}

// Role selects the EPA column PrintLeaders sorts by.
type Role string

const (
	RolePassing   Role = "passing"
	RoleRushing   Role = "rushing"
	RoleReceiving Role = "receiving"
	RoleTotal     Role = "total"
)

func (r Role) epa(m model.AdvancedMetrics) *float64 {
	switch r {
	case RolePassing:
		return m.PassingEPA
	case RoleRushing:
		return m.RushingEPA
	case RoleReceiving:
		return m.ReceivingEPA
	}
	return m.TotalEPA
}

// PrintLeaders prints the top limit players of a season by role EPA. Players
// without a value for the role are left out.
func PrintLeaders(w io.Writer, metrics []model.AdvancedMetrics, players map[int64]model.Player, role Role, limit int) {
	rows := make([]model.AdvancedMetrics, 0, len(metrics))
	for _, m := range metrics {
		if role.epa(m) != nil {
			rows = append(rows, m)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return *role.epa(rows[i]) > *role.epa(rows[j]) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	table := newTable(w)
	table.Header("#", "NAME", "POS", "TEAM", "PASS_EPA", "RUSH_EPA", "REC_EPA", "EPA", "EPA/PLAY", "SUCC%", "CPOE")
	for i, m := range rows {
		p := players[m.PlayerID]
		table.Append(
			strconv.Itoa(i+1),
			p.Name,
			p.Position,
			p.Team,
			opt(m.PassingEPA, 1),
			opt(m.RushingEPA, 1),
			opt(m.ReceivingEPA, 1),
			opt(m.TotalEPA, 1),
			opt(m.EPAPerPlay, 3),
			opt(m.SuccessRate, 1),
			opt(m.CPOE, 1),
		)
	}
	table.Render()
}
