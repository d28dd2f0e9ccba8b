package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				type VARCHAR(50) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'paused', 'disabled')),
				target_root_id VARCHAR(255) NOT NULL DEFAULT '',
				schedule VARCHAR(255) NOT NULL DEFAULT '',
				owner VARCHAR(255),
				last_run_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_type ON workflows(type);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);

			CREATE TABLE channel_bindings (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				source_channel_id VARCHAR(255) NOT NULL,
				source_channel_name VARCHAR(255) NOT NULL,
				target_subpage_id VARCHAR(255) NOT NULL DEFAULT '',
				position INT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (workflow_id, source_channel_id)
			);

			CREATE INDEX idx_channel_bindings_position ON channel_bindings(workflow_id, position);
		`,
		2: `
			CREATE TABLE message_mappings (
				workflow_id VARCHAR(255) NOT NULL,
				source_channel_id VARCHAR(255) NOT NULL,
				source_ts DOUBLE PRECISION NOT NULL,
				parent_source_ts DOUBLE PRECISION,
				target_block_id VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				deleted_at TIMESTAMP WITH TIME ZONE,
				PRIMARY KEY (workflow_id, source_channel_id, source_ts)
			);

			CREATE INDEX idx_message_mappings_parent ON message_mappings(workflow_id, source_channel_id, parent_source_ts)
				WHERE parent_source_ts IS NOT NULL;
		`,
	}
}
