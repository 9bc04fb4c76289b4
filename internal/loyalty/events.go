package loyalty

const (
	TopicPointsRetry = "loyalty.points.retry"

	EventPointsAwardRequested = "PointsAwardRequested"
)
