package sqlstore

import (
	"fmt"
)

// schemaStatements 按方言生成全部表的DDL
// 所有表以pe_为前缀；执行表内嵌计数优化列。
func schemaStatements(d Dialect) []string {
	boolT := d.BooleanType()
	textT := d.TextType()
	tsT := d.TimestampType()

	executionSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS pe_execution (
		id VARCHAR(64) PRIMARY KEY,
		rev INT NOT NULL DEFAULT 1,
		proc_def_id VARCHAR(64) NOT NULL DEFAULT '',
		proc_def_key VARCHAR(255) NOT NULL DEFAULT '',
		proc_def_name VARCHAR(255) NOT NULL DEFAULT '',
		proc_inst_id VARCHAR(64) NOT NULL DEFAULT '',
		root_proc_inst_id VARCHAR(64) NOT NULL DEFAULT '',
		parent_id VARCHAR(64) NOT NULL DEFAULT '',
		super_exec_id VARCHAR(64) NOT NULL DEFAULT '',
		activity_id VARCHAR(255) NOT NULL DEFAULT '',
		activity_name VARCHAR(255) NOT NULL DEFAULT '',
		is_active %[1]s NOT NULL DEFAULT 0,
		is_ended %[1]s NOT NULL DEFAULT 0,
		is_scope %[1]s NOT NULL DEFAULT 0,
		is_concurrent %[1]s NOT NULL DEFAULT 0,
		is_event_scope %[1]s NOT NULL DEFAULT 0,
		is_mi_root %[1]s NOT NULL DEFAULT 0,
		suspension_state INT NOT NULL DEFAULT 1,
		business_key VARCHAR(255) NOT NULL DEFAULT '',
		tenant_id VARCHAR(255) NOT NULL DEFAULT '',
		delete_reason %[2]s,
		start_time %[3]s,
		start_user_id VARCHAR(255) NOT NULL DEFAULT '',
		start_act_id VARCHAR(255) NOT NULL DEFAULT '',
		lock_time %[3]s NULL,
		callback_id VARCHAR(255) NOT NULL DEFAULT '',
		callback_type VARCHAR(255) NOT NULL DEFAULT '',
		propagated_stage_inst_id VARCHAR(255) NOT NULL DEFAULT '',
		is_count_enabled %[1]s NOT NULL DEFAULT 0,
		evt_sub_count INT NOT NULL DEFAULT 0,
		task_count INT NOT NULL DEFAULT 0,
		job_count INT NOT NULL DEFAULT 0,
		timer_job_count INT NOT NULL DEFAULT 0,
		susp_job_count INT NOT NULL DEFAULT 0,
		dead_letter_job_count INT NOT NULL DEFAULT 0,
		ext_worker_job_count INT NOT NULL DEFAULT 0,
		var_count INT NOT NULL DEFAULT 0,
		id_link_count INT NOT NULL DEFAULT 0
	)`, boolT, textT, tsT)

	taskSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS pe_task (
		id VARCHAR(64) PRIMARY KEY,
		rev INT NOT NULL DEFAULT 1,
		name VARCHAR(255) NOT NULL DEFAULT '',
		description %[2]s,
		task_def_key VARCHAR(255) NOT NULL DEFAULT '',
		execution_id VARCHAR(64) NOT NULL DEFAULT '',
		proc_inst_id VARCHAR(64) NOT NULL DEFAULT '',
		proc_def_id VARCHAR(64) NOT NULL DEFAULT '',
		assignee VARCHAR(255) NOT NULL DEFAULT '',
		owner VARCHAR(255) NOT NULL DEFAULT '',
		priority INT NOT NULL DEFAULT 0,
		create_time %[3]s,
		due_date %[3]s NULL,
		claim_time %[3]s NULL,
		suspension_state INT NOT NULL DEFAULT 1,
		tenant_id VARCHAR(255) NOT NULL DEFAULT '',
		is_count_enabled %[1]s NOT NULL DEFAULT 0,
		var_count INT NOT NULL DEFAULT 0,
		id_link_count INT NOT NULL DEFAULT 0
	)`, boolT, textT, tsT)

	variableSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS pe_variable (
		id VARCHAR(64) PRIMARY KEY,
		rev INT NOT NULL DEFAULT 1,
		name VARCHAR(255) NOT NULL DEFAULT '',
		type_name VARCHAR(64) NOT NULL DEFAULT '',
		execution_id VARCHAR(64) NOT NULL DEFAULT '',
		proc_inst_id VARCHAR(64) NOT NULL DEFAULT '',
		task_id VARCHAR(64) NOT NULL DEFAULT '',
		scope_id VARCHAR(64) NOT NULL DEFAULT '',
		scope_type VARCHAR(64) NOT NULL DEFAULT '',
		text_value %[1]s,
		long_value BIGINT NULL,
		double_value %[2]s NULL,
		byte_array_id VARCHAR(64) NOT NULL DEFAULT ''
	)`, textT, d.FloatType())

	byteArraySQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS pe_byte_array (
		id VARCHAR(64) PRIMARY KEY,
		rev INT NOT NULL DEFAULT 1,
		name VARCHAR(255) NOT NULL DEFAULT '',
		bytes_ %s
	)`, d.BlobType())

	jobSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS pe_job (
		id VARCHAR(64) PRIMARY KEY,
		rev INT NOT NULL DEFAULT 1,
		job_kind VARCHAR(32) NOT NULL DEFAULT '',
		handler_type VARCHAR(255) NOT NULL DEFAULT '',
		handler_cfg %[2]s,
		execution_id VARCHAR(64) NOT NULL DEFAULT '',
		proc_inst_id VARCHAR(64) NOT NULL DEFAULT '',
		proc_def_id VARCHAR(64) NOT NULL DEFAULT '',
		due_date %[3]s NULL,
		repeat_expr VARCHAR(255) NOT NULL DEFAULT '',
		retries INT NOT NULL DEFAULT 0,
		exclusive %[1]s NOT NULL DEFAULT 0,
		lock_owner VARCHAR(255) NOT NULL DEFAULT '',
		lock_expiration %[3]s NULL,
		exception_msg %[2]s,
		tenant_id VARCHAR(255) NOT NULL DEFAULT '',
		create_time %[3]s
	)`, boolT, textT, tsT)

	eventSubSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS pe_event_subscription (
		id VARCHAR(64) PRIMARY KEY,
		rev INT NOT NULL DEFAULT 1,
		event_type VARCHAR(64) NOT NULL DEFAULT '',
		event_name VARCHAR(255) NOT NULL DEFAULT '',
		execution_id VARCHAR(64) NOT NULL DEFAULT '',
		proc_inst_id VARCHAR(64) NOT NULL DEFAULT '',
		proc_def_id VARCHAR(64) NOT NULL DEFAULT '',
		activity_id VARCHAR(255) NOT NULL DEFAULT '',
		configuration %s,
		create_time %s,
		tenant_id VARCHAR(255) NOT NULL DEFAULT ''
	)`, textT, tsT)

	identityLinkSQL := `
	CREATE TABLE IF NOT EXISTS pe_identity_link (
		id VARCHAR(64) PRIMARY KEY,
		link_type VARCHAR(64) NOT NULL DEFAULT '',
		user_id VARCHAR(255) NOT NULL DEFAULT '',
		group_id VARCHAR(255) NOT NULL DEFAULT '',
		task_id VARCHAR(64) NOT NULL DEFAULT '',
		proc_inst_id VARCHAR(64) NOT NULL DEFAULT '',
		scope_def_id VARCHAR(64) NOT NULL DEFAULT ''
	)`

	entityLinkSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS pe_entity_link (
		id VARCHAR(64) PRIMARY KEY,
		link_type VARCHAR(64) NOT NULL DEFAULT '',
		scope_id VARCHAR(64) NOT NULL DEFAULT '',
		scope_type VARCHAR(64) NOT NULL DEFAULT '',
		ref_scope_id VARCHAR(64) NOT NULL DEFAULT '',
		ref_scope_type VARCHAR(64) NOT NULL DEFAULT '',
		root_scope_id VARCHAR(64) NOT NULL DEFAULT '',
		root_scope_type VARCHAR(64) NOT NULL DEFAULT '',
		parent_element_id VARCHAR(255) NOT NULL DEFAULT '',
		root_proc_inst_id VARCHAR(64) NOT NULL DEFAULT '',
		hierarchy_type VARCHAR(64) NOT NULL DEFAULT '',
		create_time %s
	)`, tsT)

	activityInstanceSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS pe_activity_instance (
		id VARCHAR(64) PRIMARY KEY,
		rev INT NOT NULL DEFAULT 1,
		activity_id VARCHAR(255) NOT NULL DEFAULT '',
		activity_name VARCHAR(255) NOT NULL DEFAULT '',
		activity_type VARCHAR(64) NOT NULL DEFAULT '',
		execution_id VARCHAR(64) NOT NULL DEFAULT '',
		proc_inst_id VARCHAR(64) NOT NULL DEFAULT '',
		proc_def_id VARCHAR(64) NOT NULL DEFAULT '',
		task_id VARCHAR(64) NOT NULL DEFAULT '',
		assignee VARCHAR(255) NOT NULL DEFAULT '',
		called_proc_inst_id VARCHAR(64) NOT NULL DEFAULT '',
		start_time %[2]s,
		end_time %[2]s NULL,
		duration_ms BIGINT NULL,
		delete_reason %[1]s,
		tenant_id VARCHAR(255) NOT NULL DEFAULT ''
	)`, textT, tsT)

	histProcInstSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS pe_hist_proc_inst (
		id VARCHAR(64) PRIMARY KEY,
		proc_def_id VARCHAR(64) NOT NULL DEFAULT '',
		business_key VARCHAR(255) NOT NULL DEFAULT '',
		start_time %[2]s,
		end_time %[2]s NULL,
		duration_ms BIGINT NULL,
		start_user_id VARCHAR(255) NOT NULL DEFAULT '',
		start_act_id VARCHAR(255) NOT NULL DEFAULT '',
		end_act_id VARCHAR(255) NOT NULL DEFAULT '',
		end_state VARCHAR(64) NOT NULL DEFAULT '',
		delete_reason %[1]s,
		tenant_id VARCHAR(255) NOT NULL DEFAULT ''
	)`, textT, tsT)

	histActInstSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS pe_hist_act_inst (
		id VARCHAR(64) PRIMARY KEY,
		activity_id VARCHAR(255) NOT NULL DEFAULT '',
		activity_name VARCHAR(255) NOT NULL DEFAULT '',
		activity_type VARCHAR(64) NOT NULL DEFAULT '',
		execution_id VARCHAR(64) NOT NULL DEFAULT '',
		proc_inst_id VARCHAR(64) NOT NULL DEFAULT '',
		task_id VARCHAR(64) NOT NULL DEFAULT '',
		assignee VARCHAR(255) NOT NULL DEFAULT '',
		start_time %[2]s,
		end_time %[2]s NULL,
		duration_ms BIGINT NULL,
		delete_reason %[1]s
	)`, textT, tsT)

	histVariableSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS pe_hist_variable (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL DEFAULT '',
		type_name VARCHAR(64) NOT NULL DEFAULT '',
		text_value %[1]s,
		execution_id VARCHAR(64) NOT NULL DEFAULT '',
		proc_inst_id VARCHAR(64) NOT NULL DEFAULT '',
		task_id VARCHAR(64) NOT NULL DEFAULT '',
		create_time %[2]s NULL,
		last_updated_time %[2]s NULL,
		removed %[3]s NOT NULL DEFAULT 0
	)`, textT, tsT, boolT)

	histDetailSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS pe_hist_detail (
		id VARCHAR(64) PRIMARY KEY,
		detail_type VARCHAR(64) NOT NULL DEFAULT '',
		variable_name VARCHAR(255) NOT NULL DEFAULT '',
		type_name VARCHAR(64) NOT NULL DEFAULT '',
		text_value %[1]s,
		source_execution_id VARCHAR(64) NOT NULL DEFAULT '',
		proc_inst_id VARCHAR(64) NOT NULL DEFAULT '',
		time_ %[2]s
	)`, textT, tsT)

	indexSQL := []string{
		`CREATE INDEX IF NOT EXISTS idx_execution_root ON pe_execution (root_proc_inst_id)`,
		`CREATE INDEX IF NOT EXISTS idx_execution_parent ON pe_execution (parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_execution_proc_inst ON pe_execution (proc_inst_id)`,
		`CREATE INDEX IF NOT EXISTS idx_execution_super ON pe_execution (super_exec_id)`,
		`CREATE INDEX IF NOT EXISTS idx_task_execution ON pe_task (execution_id)`,
		`CREATE INDEX IF NOT EXISTS idx_task_proc_inst ON pe_task (proc_inst_id)`,
		`CREATE INDEX IF NOT EXISTS idx_variable_execution ON pe_variable (execution_id)`,
		`CREATE INDEX IF NOT EXISTS idx_variable_task ON pe_variable (task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_job_execution ON pe_job (execution_id, job_kind)`,
		`CREATE INDEX IF NOT EXISTS idx_event_sub_execution ON pe_event_subscription (execution_id)`,
		`CREATE INDEX IF NOT EXISTS idx_identity_link_task ON pe_identity_link (task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_identity_link_proc_inst ON pe_identity_link (proc_inst_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entity_link_root ON pe_entity_link (root_proc_inst_id)`,
		`CREATE INDEX IF NOT EXISTS idx_act_inst_execution ON pe_activity_instance (execution_id)`,
		`CREATE INDEX IF NOT EXISTS idx_act_inst_proc_inst ON pe_activity_instance (proc_inst_id)`,
		`CREATE INDEX IF NOT EXISTS idx_hist_act_proc_inst ON pe_hist_act_inst (proc_inst_id)`,
		`CREATE INDEX IF NOT EXISTS idx_hist_var_proc_inst ON pe_hist_variable (proc_inst_id)`,
		`CREATE INDEX IF NOT EXISTS idx_hist_detail_proc_inst ON pe_hist_detail (proc_inst_id)`,
	}

	out := []string{
		executionSQL, taskSQL, variableSQL, byteArraySQL, jobSQL,
		eventSubSQL, identityLinkSQL, entityLinkSQL, activityInstanceSQL,
		histProcInstSQL, histActInstSQL, histVariableSQL, histDetailSQL,
	}
	if d.SupportsCreateIndexIfNotExists() {
		out = append(out, indexSQL...)
	}
	return out
}
