package predictionRepository

const (
	queryInsertPrediction = `
		INSERT INTO predictions (
			filename,
			label,
			confidence,
			user_id,
			created_at
		) VALUES (
			:filename,
			:label,
			:confidence,
			:user_id,
			:created_at
		)
	`

	queryListPredictions = `
		SELECT
			id,
			filename,
			label,
			confidence,
			user_id,
			created_at
		FROM predictions
		ORDER BY id DESC
		LIMIT :limit
	`
)
