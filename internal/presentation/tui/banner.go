package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the GOI banner with the running version.
func PrintBanner(version string) {
	p := termenv.ColorProfile()
	// Indigo to rose gradient.
	s1 := termenv.String("   ____  ___  ___ ").Foreground(p.Color("#818cf8"))
	s2 := termenv.String("  / ___|/ _ \\|_ _|").Foreground(p.Color("#a78bfa"))
	s3 := termenv.String(" | |  _| | | || | ").Foreground(p.Color("#c084fc"))
	s4 := termenv.String(" | |_| | |_| || | ").Foreground(p.Color("#e879f9"))
	s5 := termenv.String("  \\____|\\___/|___|").Foreground(p.Color("#f472b6"))
	tag := termenv.String(fmt.Sprintf("  goal-oriented interaction %s", version)).
		Foreground(p.Color("#fb7185")).Italic()

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println(s5)
	fmt.Println(tag)
	fmt.Println()
}
