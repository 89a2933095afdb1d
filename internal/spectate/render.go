package spectate

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"swingy/server/internal/sim"
)

const (
	maxScoreLines = 5
	minInnerCols  = 10
	minMapRows    = 3
	nameWidth     = 12
)

// Render draws a scoreboard and a minimap of snap into a cols x rows
// terminal. Lines are separated by CRLF for raw ptys.
func Render(snap sim.Snapshot, width, height float64, cols, rows int) string {
	lines := []string{fmt.Sprintf("tick %d  demon %d/%d  players %d", snap.Tick, snap.Demon.Health, sim.MaxHealth, len(snap.Players))}
	lines = append(lines, scoreboard(snap.Players)...)

	inner := cols - 2
	if inner < minInnerCols {
		inner = minInnerCols
	}
	mapRows := rows - len(lines) - 2
	if mapRows < minMapRows {
		mapRows = minMapRows
	}

	grid := make([][]byte, mapRows)
	for i := range grid {
		grid[i] = []byte(strings.Repeat(" ", inner))
	}
	plot := func(pos sim.Vec2, mark byte) {
		x := cell(pos.X, width, inner)
		y := cell(pos.Y, height, mapRows)
		grid[y][x] = mark
	}
	for _, group := range snap.Bullets {
		mark := byte('.')
		if group.Owner == sim.DemonOwner {
			mark = '*'
		}
		for _, b := range group.Bullets {
			plot(b.Pos, mark)
		}
	}
	for _, p := range snap.Players {
		plot(p.Pos, playerMark(p.Name))
	}
	plot(snap.Demon.Pos, 'D')

	border := "+" + strings.Repeat("-", inner) + "+"
	lines = append(lines, border)
	for _, row := range grid {
		lines = append(lines, "|"+string(row)+"|")
	}
	lines = append(lines, border)
	return strings.Join(lines, "\r\n")
}

func scoreboard(players []sim.PlayerState) []string {
	ranked := append([]sim.PlayerState(nil), players...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > maxScoreLines {
		ranked = ranked[:maxScoreLines]
	}
	out := make([]string, 0, len(ranked))
	for _, p := range ranked {
		name := p.Name
		if utf8.RuneCountInString(name) > nameWidth {
			name = string([]rune(name)[:nameWidth])
		}
		out = append(out, fmt.Sprintf("%-*s %6d  hp %3d", nameWidth, name, p.Score, p.Health))
	}
	return out
}

func cell(v, extent float64, n int) int {
	if extent <= 0 {
		return 0
	}
	i := int(v / extent * float64(n))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func playerMark(name string) byte {
	if name == "" || name[0] >= utf8.RuneSelf || name[0] <= ' ' {
		return '@'
	}
	return name[0]
}
