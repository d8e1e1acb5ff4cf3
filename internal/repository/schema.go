// Package repository contains the Postgres-backed stores and the Kafka event
// publisher behind the domain repository interfaces.
package repository

// Schema returns the idempotent DDL for every table the service owns. Applied
// at startup via the postgres client's InitSchema.
func Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS warmup_jobs (
			id          BIGSERIAL PRIMARY KEY,
			slug        TEXT NOT NULL,
			timeframe   TEXT NOT NULL,
			geo         TEXT NOT NULL,
			data_hash   TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'queued',
			attempts    INT  NOT NULL DEFAULT 0,
			debug_id    TEXT NOT NULL DEFAULT '',
			last_error  TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			started_at  TIMESTAMPTZ,
			finished_at TIMESTAMPTZ
		)`,
		// At most one active job per fingerprint; enqueue relies on this for
		// its atomic conditional insert.
		`CREATE UNIQUE INDEX IF NOT EXISTS warmup_jobs_active_uniq
			ON warmup_jobs (slug, timeframe, geo, data_hash)
			WHERE status IN ('queued', 'running')`,
		`CREATE INDEX IF NOT EXISTS warmup_jobs_queued_idx
			ON warmup_jobs (created_at)
			WHERE status = 'queued'`,

		`CREATE TABLE IF NOT EXISTS forecast_runs (
			id                 BIGSERIAL PRIMARY KEY,
			slug               TEXT NOT NULL,
			timeframe          TEXT NOT NULL,
			geo                TEXT NOT NULL,
			term_a             TEXT NOT NULL,
			term_b             TEXT NOT NULL,
			data_hash          TEXT NOT NULL,
			horizon_days       INT  NOT NULL,
			winner_probability DOUBLE PRECISION NOT NULL,
			computed_at        TIMESTAMPTZ NOT NULL,
			evaluated_at       TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS forecast_runs_unevaluated_idx
			ON forecast_runs (computed_at)
			WHERE evaluated_at IS NULL`,

		`CREATE TABLE IF NOT EXISTS forecast_points (
			run_id  BIGINT NOT NULL REFERENCES forecast_runs(id) ON DELETE CASCADE,
			date    DATE NOT NULL,
			term    TEXT NOT NULL,
			value   DOUBLE PRECISION NOT NULL,
			lower80 DOUBLE PRECISION NOT NULL,
			upper80 DOUBLE PRECISION NOT NULL,
			lower95 DOUBLE PRECISION NOT NULL,
			upper95 DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS forecast_points_run_idx
			ON forecast_points (run_id, term, date)`,

		`CREATE TABLE IF NOT EXISTS forecast_evaluations (
			id                   BIGSERIAL PRIMARY KEY,
			forecast_run_id      BIGINT NOT NULL UNIQUE REFERENCES forecast_runs(id),
			winner_correct       BOOLEAN NOT NULL,
			direction_accuracy_a DOUBLE PRECISION,
			direction_accuracy_b DOUBLE PRECISION,
			interval_hit_rate_80 DOUBLE PRECISION NOT NULL,
			interval_hit_rate_95 DOUBLE PRECISION NOT NULL,
			mae                  DOUBLE PRECISION NOT NULL,
			mape                 DOUBLE PRECISION NOT NULL,
			evaluated_points     INT NOT NULL,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS forecast_trust_stats (
			period                    TEXT PRIMARY KEY,
			total_evaluated           INT NOT NULL,
			winner_accuracy_percent   DOUBLE PRECISION NOT NULL,
			interval_coverage_percent DOUBLE PRECISION NOT NULL,
			last_90_days_accuracy     DOUBLE PRECISION NOT NULL,
			updated_at                TIMESTAMPTZ NOT NULL
		)`,
	}
}
