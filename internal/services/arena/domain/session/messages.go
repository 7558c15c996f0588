package session

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// statusPrinter renders user-facing status messages. The catalog is
// English-only for now; downstream surfaces re-render per locale.
var statusPrinter = message.NewPrinter(language.AmericanEnglish)

func victoryMessage(winCount int) string {
	return statusPrinter.Sprintf("Victory! Battles won: %d.", winCount)
}

func brawlContinueMessage(winCount int) string {
	return statusPrinter.Sprintf("Foe defeated! The brawl continues with %d wins.", winCount)
}

func defeatMessage(brawl bool, winCount int) string {
	if brawl {
		return statusPrinter.Sprintf("Defeated after %d wins.", winCount)
	}
	return statusPrinter.Sprintf("Defeated.")
}

func drawMessage(brawl bool, winCount int) string {
	if brawl {
		return statusPrinter.Sprintf("The brawl ends in a draw after %d wins.", winCount)
	}
	return statusPrinter.Sprintf("The battle ends in a draw.")
}
