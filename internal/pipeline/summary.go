package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hackstage/hackstage-api/internal/models"
	"github.com/hackstage/hackstage-api/pkg/aisearch"
)

const mismatchSampleLimit = 3

// summaryOutcome is the validated result of a summary query. Accepted means
// the text genuinely describes this submission's files and may be scored;
// everything else is a diagnostic placeholder that is persisted for the UI
// but never fed to the scorer.
type summaryOutcome struct {
	Text          string
	Accepted      bool
	StillIndexing bool
}

// generateSummary queries the AI search service scoped to the submission's
// path prefix and validates that the returned documents actually belong to
// it. The upstream filter is unreliable, so the prompt restates the prefix
// restriction and the response is checked document by document. A generated
// text backed by zero matching documents was computed over someone else's
// repository and is rejected outright.
func (p *Processor) generateSummary(ctx context.Context, submission models.Submission) summaryOutcome {
	if p.search == nil {
		return configDiagnosticOutcome("the AI search client is not configured")
	}

	prefix := submission.Source.R2Key
	result, err := p.search.Search(ctx, buildSummaryQuery(submission.Title, prefix), prefix)
	if err != nil {
		if errors.Is(err, aisearch.ErrInstanceNotFound) {
			return configDiagnosticOutcome(err.Error())
		}

		p.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("summary query failed")
		return summaryOutcome{
			Text: "An AI summary could not be generated for this submission. " +
				"The search service did not respond; use Regenerate to try again.",
		}
	}

	if len(result.Documents) == 0 {
		return summaryOutcome{
			Text:          "This repository is still being indexed. The AI summary will appear once indexing completes.",
			StillIndexing: true,
		}
	}

	matched, mismatched := partitionByPrefix(result.Documents, prefix)
	if len(matched) == 0 {
		summaryRejections.Inc()
		p.logger.Error().
			Str("submission_id", submission.ID).
			Str("prefix", prefix).
			Strs("sample_paths", mismatched).
			Msg("rejecting summary: no returned document belongs to this submission")
		return summaryOutcome{Text: rejectionText(mismatched)}
	}

	if strings.TrimSpace(result.Response) == "" {
		return summaryOutcome{
			Text:     fallbackSummary(submission.Title, matched, prefix),
			Accepted: true,
		}
	}

	return summaryOutcome{
		Text:     fmt.Sprintf("## %s\n\n%s", submission.Title, strings.TrimSpace(result.Response)),
		Accepted: true,
	}
}

func buildSummaryQuery(title, prefix string) string {
	return fmt.Sprintf(
		"Analyze only the documents under the path prefix %q and nothing else. "+
			"Summarize what the project %q does, its main components, and the technologies it uses. "+
			"If the documents you can see are not under that prefix, say so instead of summarizing them.",
		prefix, title)
}

// partitionByPrefix splits documents into those under the expected prefix and
// a sample of the paths that were not.
func partitionByPrefix(documents []aisearch.Document, prefix string) ([]string, []string) {
	var matched, mismatched []string
	for _, doc := range documents {
		docPath := aisearch.NormalizeDocumentPath(doc)
		if docPath == "" {
			continue
		}
		if strings.HasPrefix(docPath, prefix) {
			matched = append(matched, docPath)
			continue
		}
		if len(mismatched) < mismatchSampleLimit {
			mismatched = append(mismatched, docPath)
		}
	}

	return matched, mismatched
}

func rejectionText(samplePaths []string) string {
	builder := strings.Builder{}
	builder.WriteString("The AI analysis could not be verified for this submission: the search index returned ")
	builder.WriteString("documents belonging to a different repository, so the generated summary was discarded ")
	builder.WriteString("rather than risk describing the wrong project.")
	if len(samplePaths) > 0 {
		builder.WriteString("\n\nSample of mismatched paths:\n")
		for _, p := range samplePaths {
			builder.WriteString("- ")
			builder.WriteString(p)
			builder.WriteString("\n")
		}
	}
	builder.WriteString("\nUse Regenerate once indexing has settled.")
	return builder.String()
}

// fallbackSummary lists the matched files when the service returned documents
// but no generated text.
func fallbackSummary(title string, matchedPaths []string, prefix string) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("## %s\n\nThe index is ready but no narrative summary was produced. Indexed files:\n", title))
	for i, docPath := range matchedPaths {
		if i >= 20 {
			builder.WriteString(fmt.Sprintf("- … and %d more\n", len(matchedPaths)-i))
			break
		}
		builder.WriteString("- ")
		builder.WriteString(strings.TrimPrefix(docPath, prefix))
		builder.WriteString("\n")
	}
	return builder.String()
}

func configDiagnosticOutcome(detail string) summaryOutcome {
	return summaryOutcome{
		Text: "AI summaries are unavailable due to a configuration problem: " + detail + ". " +
			"Check the AI search account id, instance name, and API token settings.",
	}
}
