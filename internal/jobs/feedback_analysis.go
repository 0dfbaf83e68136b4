package jobs

import (
	"context"
	"log"

	"helpdock/internal/feedback"
)

// FeedbackAnalysisJob runs the feedback learner's analysis and logs the
// derived insights, so operators see knowledge gaps even when traffic
// never hits the every-100th-record trigger.
type FeedbackAnalysisJob struct {
	learner *feedback.Learner
}

// NewFeedbackAnalysisJob creates a feedback analysis job.
func NewFeedbackAnalysisJob(learner *feedback.Learner) *FeedbackAnalysisJob {
	return &FeedbackAnalysisJob{learner: learner}
}

// Run analyzes the feedback window and logs the findings.
func (j *FeedbackAnalysisJob) Run(ctx context.Context) error {
	stats := j.learner.Statistics()
	if stats.Total == 0 {
		return nil
	}

	insights := j.learner.AnalyzeAndLearn()
	threshold := j.learner.RecommendedConfidenceThreshold()

	log.Printf("📊 [FEEDBACK-ANALYSIS] %d entries, %.0f%% positive, threshold %.1f, %d insights",
		stats.Total, stats.PositiveRatio*100, threshold, len(insights))
	for _, insight := range insights {
		log.Printf("💡 [FEEDBACK-ANALYSIS] %s (%d occurrences): %s",
			insight.Pattern, insight.Occurrences, insight.Recommendation)
	}
	return nil
}
