package export

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/leadforge/outreach-orchestrator/pkg/llm"
	"github.com/leadforge/outreach-orchestrator/pkg/workerpool"
)

// PrintSummary prints the end-of-run funnel, cost, and compression report.
func PrintSummary(stats workerpool.Stats, model string, outputPath string) {
	header := color.New(color.FgCyan, color.Bold)
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	dim := color.New(color.Faint)

	fmt.Println()
	header.Println("================================================================================")
	header.Println("PROCESSING SUMMARY")
	header.Println("================================================================================")

	total := stats.Processed
	fmt.Printf("\nTotal Leads Processed: %d\n", total)
	if total == 0 {
		dim.Println("No tasks to summarize")
		return
	}

	fmt.Println("\nStage 1 - Classification:")
	ok.Printf("  Relevant: %d (%.1f%%)\n", stats.Stage1Relevant, pct(stats.Stage1Relevant, total))
	bad.Printf("  Not Relevant: %d (%.1f%%)\n", stats.Stage1NotRelevant, pct(stats.Stage1NotRelevant, total))

	if stats.Stage1Relevant > 0 {
		fmt.Println("\nStage 2 - Letter Generation:")
		ok.Printf("  Letters Generated: %d (%.1f%%)\n", stats.Stage2Letters, pct(stats.Stage2Letters, total))
		bad.Printf("  Rejected (Stage 2): %d\n", stats.Stage2Rejected)
	}

	if stats.Errors > 0 {
		bad.Printf("\nErrors: %d\n", stats.Errors)
	}

	usage := stats.TotalUsage()
	cost := llm.CostUSD(model, usage)
	fmt.Println("\nToken Usage & Cost:")
	fmt.Printf("  Total Tokens: %d (%.1fK)\n", usage.TotalTokens(), float64(usage.TotalTokens())/1000)
	fmt.Printf("    - Input: %d\n", usage.InputTokens)
	fmt.Printf("    - Output: %d\n", usage.OutputTokens)
	if usage.InputTokens > 0 {
		fmt.Printf("    - Cached: %d (%.1f%% of input)\n", usage.CachedTokens,
			float64(usage.CachedTokens)/float64(usage.InputTokens)*100)
	}
	fmt.Printf("  Stage 1 (Classification): %d tokens\n", stats.Stage1Usage.TotalTokens())
	fmt.Printf("  Stage 2 (Letter Gen): %d tokens\n", stats.Stage2Usage.TotalTokens())
	fmt.Printf("\n  Total Cost: $%.3f\n", cost)
	fmt.Printf("  Avg Cost per Lead: $%.4f\n", cost/float64(total))

	if stats.Compression.Count > 0 {
		saved := stats.Compression.MessagesBefore - stats.Compression.MessagesAfter
		fmt.Println("\nContext Compression:")
		fmt.Printf("  Total Compressions: %d\n", stats.Compression.Count)
		fmt.Printf("  Messages Saved: %d (%d -> %d)\n", saved,
			stats.Compression.MessagesBefore, stats.Compression.MessagesAfter)
	}

	fmt.Printf("\nResults saved to: %s\n", outputPath)
	header.Println("================================================================================")
	fmt.Println()
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
