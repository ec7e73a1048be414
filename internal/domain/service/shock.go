package service

// ShockScore converts a news-volume anomaly and macro relevance into a 0..1
// shock score. Volume multiplier saturates at 5x baseline; a score above 0.7
// lets the entry gate bypass hysteresis.
func ShockScore(todayHits int, baseline7d, macroRelevance float64) float64 {
	volumeMult := min(5.0, float64(todayHits)/max(1.0, baseline7d))
	score := (volumeMult-1.0)*0.5 + macroRelevance*0.5
	return max(0.0, min(1.0, score))
}
