package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflows as authored in the builder; nodes and edges are stored as documents
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				user_id VARCHAR(255) NOT NULL DEFAULT '',
				name VARCHAR(255) NOT NULL DEFAULT '',
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_user_id ON workflows(user_id);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
		`,
		2: `
			-- Run records
			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				user_id VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(32) NOT NULL CHECK (status IN ('InProgress', 'Success', 'Failed')),
				steps JSONB NOT NULL DEFAULT '[]',
				start_time TIMESTAMP WITH TIME ZONE NOT NULL,
				end_time TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_executions_workflow_start ON executions(workflow_id, start_time DESC);
			CREATE INDEX idx_executions_status ON executions(status);
		`,
	}
}
