package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/storage"
)

// 各实体的DataManager实现，全部在会话事务内执行。
// 乐观锁通过UPDATE ... WHERE id=? AND rev=?实现，零行受影响即冲突。

const executionSelect = `SELECT id, rev, proc_def_id, proc_def_key, proc_def_name, proc_inst_id,
	root_proc_inst_id, parent_id, super_exec_id, activity_id, activity_name,
	is_active, is_ended, is_scope, is_concurrent, is_event_scope, is_mi_root,
	suspension_state, business_key, tenant_id, delete_reason, start_time,
	start_user_id, start_act_id, lock_time, callback_id, callback_type,
	propagated_stage_inst_id, is_count_enabled, evt_sub_count, task_count,
	job_count, timer_job_count, susp_job_count, dead_letter_job_count,
	ext_worker_job_count, var_count, id_link_count FROM pe_execution`

type executionDM struct {
	s *session
}

func (m *executionDM) FindByID(ctx context.Context, id string) (*entity.Execution, error) {
	var r executionRow
	q := m.s.rebind(executionSelect + ` WHERE id = ?`)
	if err := m.s.tx.GetContext(ctx, &r, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("查询执行失败: %w", err)
	}
	return r.toEntity(), nil
}

func (m *executionDM) Insert(ctx context.Context, e *entity.Execution) error {
	_, err := m.s.tx.NamedExecContext(ctx, `INSERT INTO pe_execution (
		id, rev, proc_def_id, proc_def_key, proc_def_name, proc_inst_id,
		root_proc_inst_id, parent_id, super_exec_id, activity_id, activity_name,
		is_active, is_ended, is_scope, is_concurrent, is_event_scope, is_mi_root,
		suspension_state, business_key, tenant_id, delete_reason, start_time,
		start_user_id, start_act_id, lock_time, callback_id, callback_type,
		propagated_stage_inst_id, is_count_enabled, evt_sub_count, task_count,
		job_count, timer_job_count, susp_job_count, dead_letter_job_count,
		ext_worker_job_count, var_count, id_link_count
	) VALUES (
		:id, :rev, :proc_def_id, :proc_def_key, :proc_def_name, :proc_inst_id,
		:root_proc_inst_id, :parent_id, :super_exec_id, :activity_id, :activity_name,
		:is_active, :is_ended, :is_scope, :is_concurrent, :is_event_scope, :is_mi_root,
		:suspension_state, :business_key, :tenant_id, :delete_reason, :start_time,
		:start_user_id, :start_act_id, :lock_time, :callback_id, :callback_type,
		:propagated_stage_inst_id, :is_count_enabled, :evt_sub_count, :task_count,
		:job_count, :timer_job_count, :susp_job_count, :dead_letter_job_count,
		:ext_worker_job_count, :var_count, :id_link_count
	)`, executionToRow(e))
	if err != nil {
		return fmt.Errorf("插入执行失败: %w", err)
	}
	return nil
}

func (m *executionDM) Update(ctx context.Context, e *entity.Execution) error {
	res, err := m.s.tx.NamedExecContext(ctx, `UPDATE pe_execution SET
		rev = rev + 1,
		proc_def_id = :proc_def_id, proc_def_key = :proc_def_key, proc_def_name = :proc_def_name,
		proc_inst_id = :proc_inst_id, root_proc_inst_id = :root_proc_inst_id,
		parent_id = :parent_id, super_exec_id = :super_exec_id,
		activity_id = :activity_id, activity_name = :activity_name,
		is_active = :is_active, is_ended = :is_ended, is_scope = :is_scope,
		is_concurrent = :is_concurrent, is_event_scope = :is_event_scope, is_mi_root = :is_mi_root,
		suspension_state = :suspension_state, business_key = :business_key,
		tenant_id = :tenant_id, delete_reason = :delete_reason,
		lock_time = :lock_time, callback_id = :callback_id, callback_type = :callback_type,
		propagated_stage_inst_id = :propagated_stage_inst_id,
		is_count_enabled = :is_count_enabled,
		evt_sub_count = :evt_sub_count, task_count = :task_count, job_count = :job_count,
		timer_job_count = :timer_job_count, susp_job_count = :susp_job_count,
		dead_letter_job_count = :dead_letter_job_count, ext_worker_job_count = :ext_worker_job_count,
		var_count = :var_count, id_link_count = :id_link_count
		WHERE id = :id AND rev = :rev`, executionToRow(e))
	if err != nil {
		return fmt.Errorf("更新执行失败: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新执行失败: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: 执行%s（版本%d）", storage.ErrOptimisticLock, e.ID, e.Revision)
	}
	e.Revision++
	return nil
}

func (m *executionDM) Delete(ctx context.Context, id string) error {
	q := m.s.rebind(`DELETE FROM pe_execution WHERE id = ?`)
	if _, err := m.s.tx.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("删除执行失败: %w", err)
	}
	return nil
}

func (m *executionDM) FindByRootProcessInstanceID(ctx context.Context, rootID string) ([]*entity.Execution, error) {
	q := m.s.rebind(executionSelect + ` WHERE root_proc_inst_id = ? ORDER BY start_time, id`)
	return m.selectMany(ctx, q, rootID)
}

func (m *executionDM) FindChildrenByParentID(ctx context.Context, parentID string) ([]*entity.Execution, error) {
	q := m.s.rebind(executionSelect + ` WHERE parent_id = ? ORDER BY start_time, id`)
	return m.selectMany(ctx, q, parentID)
}

func (m *executionDM) FindByProcessInstanceID(ctx context.Context, processInstanceID string) ([]*entity.Execution, error) {
	q := m.s.rebind(executionSelect + ` WHERE proc_inst_id = ? ORDER BY start_time, id`)
	return m.selectMany(ctx, q, processInstanceID)
}

func (m *executionDM) FindSubProcessInstanceBySuperExecutionID(ctx context.Context, superExecutionID string) (*entity.Execution, error) {
	var r executionRow
	q := m.s.rebind(executionSelect + ` WHERE super_exec_id = ?`)
	if err := m.s.tx.GetContext(ctx, &r, q, superExecutionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("查询子流程实例失败: %w", err)
	}
	return r.toEntity(), nil
}

func (m *executionDM) selectMany(ctx context.Context, query string, args ...any) ([]*entity.Execution, error) {
	var rows []executionRow
	if err := m.s.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("查询执行列表失败: %w", err)
	}
	out := make([]*entity.Execution, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, nil
}

const taskSelect = `SELECT id, rev, name, description, task_def_key, execution_id,
	proc_inst_id, proc_def_id, assignee, owner, priority, create_time, due_date,
	claim_time, suspension_state, tenant_id, is_count_enabled, var_count, id_link_count
	FROM pe_task`

type taskDM struct {
	s *session
}

func (m *taskDM) FindByID(ctx context.Context, id string) (*entity.Task, error) {
	var r taskRow
	q := m.s.rebind(taskSelect + ` WHERE id = ?`)
	if err := m.s.tx.GetContext(ctx, &r, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("查询任务失败: %w", err)
	}
	return r.toEntity(), nil
}

func (m *taskDM) Insert(ctx context.Context, t *entity.Task) error {
	_, err := m.s.tx.NamedExecContext(ctx, `INSERT INTO pe_task (
		id, rev, name, description, task_def_key, execution_id, proc_inst_id,
		proc_def_id, assignee, owner, priority, create_time, due_date, claim_time,
		suspension_state, tenant_id, is_count_enabled, var_count, id_link_count
	) VALUES (
		:id, :rev, :name, :description, :task_def_key, :execution_id, :proc_inst_id,
		:proc_def_id, :assignee, :owner, :priority, :create_time, :due_date, :claim_time,
		:suspension_state, :tenant_id, :is_count_enabled, :var_count, :id_link_count
	)`, taskToRow(t))
	if err != nil {
		return fmt.Errorf("插入任务失败: %w", err)
	}
	return nil
}

func (m *taskDM) Update(ctx context.Context, t *entity.Task) error {
	res, err := m.s.tx.NamedExecContext(ctx, `UPDATE pe_task SET
		rev = rev + 1,
		name = :name, description = :description, task_def_key = :task_def_key,
		execution_id = :execution_id, proc_inst_id = :proc_inst_id, proc_def_id = :proc_def_id,
		assignee = :assignee, owner = :owner, priority = :priority,
		due_date = :due_date, claim_time = :claim_time, suspension_state = :suspension_state,
		tenant_id = :tenant_id, is_count_enabled = :is_count_enabled,
		var_count = :var_count, id_link_count = :id_link_count
		WHERE id = :id AND rev = :rev`, taskToRow(t))
	if err != nil {
		return fmt.Errorf("更新任务失败: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新任务失败: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: 任务%s（版本%d）", storage.ErrOptimisticLock, t.ID, t.Revision)
	}
	t.Revision++
	return nil
}

func (m *taskDM) Delete(ctx context.Context, id string) error {
	q := m.s.rebind(`DELETE FROM pe_task WHERE id = ?`)
	if _, err := m.s.tx.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("删除任务失败: %w", err)
	}
	return nil
}

func (m *taskDM) FindByExecutionID(ctx context.Context, executionID string) ([]*entity.Task, error) {
	q := m.s.rebind(taskSelect + ` WHERE execution_id = ? ORDER BY create_time, id`)
	return m.selectMany(ctx, q, executionID)
}

func (m *taskDM) FindByProcessInstanceID(ctx context.Context, processInstanceID string) ([]*entity.Task, error) {
	q := m.s.rebind(taskSelect + ` WHERE proc_inst_id = ? ORDER BY create_time, id`)
	return m.selectMany(ctx, q, processInstanceID)
}

func (m *taskDM) selectMany(ctx context.Context, query string, args ...any) ([]*entity.Task, error) {
	var rows []taskRow
	if err := m.s.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("查询任务列表失败: %w", err)
	}
	out := make([]*entity.Task, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, nil
}

const variableSelect = `SELECT id, rev, name, type_name, execution_id, proc_inst_id,
	task_id, scope_id, scope_type, text_value, long_value, double_value, byte_array_id
	FROM pe_variable`

type variableDM struct {
	s *session
}

func (m *variableDM) FindByID(ctx context.Context, id string) (*entity.VariableInstance, error) {
	var r variableRow
	q := m.s.rebind(variableSelect + ` WHERE id = ?`)
	if err := m.s.tx.GetContext(ctx, &r, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("查询变量失败: %w", err)
	}
	return r.toEntity(), nil
}

func (m *variableDM) Insert(ctx context.Context, v *entity.VariableInstance) error {
	_, err := m.s.tx.NamedExecContext(ctx, `INSERT INTO pe_variable (
		id, rev, name, type_name, execution_id, proc_inst_id, task_id,
		scope_id, scope_type, text_value, long_value, double_value, byte_array_id
	) VALUES (
		:id, :rev, :name, :type_name, :execution_id, :proc_inst_id, :task_id,
		:scope_id, :scope_type, :text_value, :long_value, :double_value, :byte_array_id
	)`, variableToRow(v))
	if err != nil {
		return fmt.Errorf("插入变量失败: %w", err)
	}
	return nil
}

func (m *variableDM) Update(ctx context.Context, v *entity.VariableInstance) error {
	res, err := m.s.tx.NamedExecContext(ctx, `UPDATE pe_variable SET
		rev = rev + 1,
		name = :name, type_name = :type_name, text_value = :text_value,
		long_value = :long_value, double_value = :double_value, byte_array_id = :byte_array_id
		WHERE id = :id AND rev = :rev`, variableToRow(v))
	if err != nil {
		return fmt.Errorf("更新变量失败: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新变量失败: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: 变量%s（版本%d）", storage.ErrOptimisticLock, v.ID, v.Revision)
	}
	v.Revision++
	return nil
}

func (m *variableDM) Delete(ctx context.Context, id string) error {
	q := m.s.rebind(`DELETE FROM pe_variable WHERE id = ?`)
	if _, err := m.s.tx.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("删除变量失败: %w", err)
	}
	return nil
}

func (m *variableDM) FindByExecutionID(ctx context.Context, executionID string) ([]*entity.VariableInstance, error) {
	q := m.s.rebind(variableSelect + ` WHERE execution_id = ? AND task_id = '' ORDER BY name`)
	return m.selectMany(ctx, q, executionID)
}

func (m *variableDM) FindByExecutionIDAndName(ctx context.Context, executionID, name string) (*entity.VariableInstance, error) {
	var r variableRow
	q := m.s.rebind(variableSelect + ` WHERE execution_id = ? AND task_id = '' AND name = ?`)
	if err := m.s.tx.GetContext(ctx, &r, q, executionID, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("查询变量失败: %w", err)
	}
	return r.toEntity(), nil
}

func (m *variableDM) FindByTaskID(ctx context.Context, taskID string) ([]*entity.VariableInstance, error) {
	q := m.s.rebind(variableSelect + ` WHERE task_id = ? ORDER BY name`)
	return m.selectMany(ctx, q, taskID)
}

func (m *variableDM) FindByTaskIDAndName(ctx context.Context, taskID, name string) (*entity.VariableInstance, error) {
	var r variableRow
	q := m.s.rebind(variableSelect + ` WHERE task_id = ? AND name = ?`)
	if err := m.s.tx.GetContext(ctx, &r, q, taskID, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("查询变量失败: %w", err)
	}
	return r.toEntity(), nil
}

func (m *variableDM) DeleteByExecutionID(ctx context.Context, executionID string) error {
	q := m.s.rebind(`DELETE FROM pe_variable WHERE execution_id = ?`)
	if _, err := m.s.tx.ExecContext(ctx, q, executionID); err != nil {
		return fmt.Errorf("批量删除执行变量失败: %w", err)
	}
	return nil
}

func (m *variableDM) DeleteByTaskID(ctx context.Context, taskID string) error {
	q := m.s.rebind(`DELETE FROM pe_variable WHERE task_id = ?`)
	if _, err := m.s.tx.ExecContext(ctx, q, taskID); err != nil {
		return fmt.Errorf("批量删除任务变量失败: %w", err)
	}
	return nil
}

func (m *variableDM) selectMany(ctx context.Context, query string, args ...any) ([]*entity.VariableInstance, error) {
	var rows []variableRow
	if err := m.s.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("查询变量列表失败: %w", err)
	}
	out := make([]*entity.VariableInstance, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, nil
}

type byteArrayDM struct {
	s *session
}

func (m *byteArrayDM) FindByID(ctx context.Context, id string) (*entity.ByteArray, error) {
	var r byteArrayRow
	q := m.s.rebind(`SELECT id, rev, name, bytes_ FROM pe_byte_array WHERE id = ?`)
	if err := m.s.tx.GetContext(ctx, &r, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("查询字节数组失败: %w", err)
	}
	return r.toEntity(), nil
}

func (m *byteArrayDM) Insert(ctx context.Context, b *entity.ByteArray) error {
	_, err := m.s.tx.NamedExecContext(ctx,
		`INSERT INTO pe_byte_array (id, rev, name, bytes_) VALUES (:id, :rev, :name, :bytes_)`,
		byteArrayToRow(b))
	if err != nil {
		return fmt.Errorf("插入字节数组失败: %w", err)
	}
	return nil
}

func (m *byteArrayDM) Delete(ctx context.Context, id string) error {
	q := m.s.rebind(`DELETE FROM pe_byte_array WHERE id = ?`)
	if _, err := m.s.tx.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("删除字节数组失败: %w", err)
	}
	return nil
}

const jobSelect = `SELECT id, rev, job_kind, handler_type, handler_cfg, execution_id,
	proc_inst_id, proc_def_id, due_date, repeat_expr, retries, exclusive,
	lock_owner, lock_expiration, exception_msg, tenant_id, create_time FROM pe_job`

type jobDM struct {
	s *session
}

func (m *jobDM) FindByID(ctx context.Context, id string) (*entity.Job, error) {
	var r jobRow
	q := m.s.rebind(jobSelect + ` WHERE id = ?`)
	if err := m.s.tx.GetContext(ctx, &r, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("查询异步任务失败: %w", err)
	}
	return r.toEntity(), nil
}

func (m *jobDM) Insert(ctx context.Context, j *entity.Job) error {
	_, err := m.s.tx.NamedExecContext(ctx, `INSERT INTO pe_job (
		id, rev, job_kind, handler_type, handler_cfg, execution_id, proc_inst_id,
		proc_def_id, due_date, repeat_expr, retries, exclusive, lock_owner,
		lock_expiration, exception_msg, tenant_id, create_time
	) VALUES (
		:id, :rev, :job_kind, :handler_type, :handler_cfg, :execution_id, :proc_inst_id,
		:proc_def_id, :due_date, :repeat_expr, :retries, :exclusive, :lock_owner,
		:lock_expiration, :exception_msg, :tenant_id, :create_time
	)`, jobToRow(j))
	if err != nil {
		return fmt.Errorf("插入异步任务失败: %w", err)
	}
	return nil
}

func (m *jobDM) Update(ctx context.Context, j *entity.Job) error {
	res, err := m.s.tx.NamedExecContext(ctx, `UPDATE pe_job SET
		rev = rev + 1,
		handler_type = :handler_type, handler_cfg = :handler_cfg,
		due_date = :due_date, repeat_expr = :repeat_expr, retries = :retries,
		exclusive = :exclusive, lock_owner = :lock_owner, lock_expiration = :lock_expiration,
		exception_msg = :exception_msg
		WHERE id = :id AND rev = :rev`, jobToRow(j))
	if err != nil {
		return fmt.Errorf("更新异步任务失败: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新异步任务失败: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: 异步任务%s（版本%d）", storage.ErrOptimisticLock, j.ID, j.Revision)
	}
	j.Revision++
	return nil
}

func (m *jobDM) Delete(ctx context.Context, id string) error {
	q := m.s.rebind(`DELETE FROM pe_job WHERE id = ?`)
	if _, err := m.s.tx.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("删除异步任务失败: %w", err)
	}
	return nil
}

func (m *jobDM) FindByExecutionIDAndKind(ctx context.Context, executionID string, kind entity.JobKind) ([]*entity.Job, error) {
	var rows []jobRow
	q := m.s.rebind(jobSelect + ` WHERE execution_id = ? AND job_kind = ? ORDER BY create_time, id`)
	if err := m.s.tx.SelectContext(ctx, &rows, q, executionID, string(kind)); err != nil {
		return nil, fmt.Errorf("查询异步任务列表失败: %w", err)
	}
	out := make([]*entity.Job, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, nil
}

func (m *jobDM) DeleteByExecutionIDAndKind(ctx context.Context, executionID string, kind entity.JobKind) error {
	q := m.s.rebind(`DELETE FROM pe_job WHERE execution_id = ? AND job_kind = ?`)
	if _, err := m.s.tx.ExecContext(ctx, q, executionID, string(kind)); err != nil {
		return fmt.Errorf("批量删除异步任务失败: %w", err)
	}
	return nil
}

const eventSubSelect = `SELECT id, rev, event_type, event_name, execution_id, proc_inst_id,
	proc_def_id, activity_id, configuration, create_time, tenant_id FROM pe_event_subscription`

type eventSubDM struct {
	s *session
}

func (m *eventSubDM) FindByID(ctx context.Context, id string) (*entity.EventSubscription, error) {
	var r eventSubRow
	q := m.s.rebind(eventSubSelect + ` WHERE id = ?`)
	if err := m.s.tx.GetContext(ctx, &r, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("查询事件订阅失败: %w", err)
	}
	return r.toEntity(), nil
}

func (m *eventSubDM) Insert(ctx context.Context, sub *entity.EventSubscription) error {
	_, err := m.s.tx.NamedExecContext(ctx, `INSERT INTO pe_event_subscription (
		id, rev, event_type, event_name, execution_id, proc_inst_id, proc_def_id,
		activity_id, configuration, create_time, tenant_id
	) VALUES (
		:id, :rev, :event_type, :event_name, :execution_id, :proc_inst_id, :proc_def_id,
		:activity_id, :configuration, :create_time, :tenant_id
	)`, eventSubToRow(sub))
	if err != nil {
		return fmt.Errorf("插入事件订阅失败: %w", err)
	}
	return nil
}

func (m *eventSubDM) Update(ctx context.Context, sub *entity.EventSubscription) error {
	res, err := m.s.tx.NamedExecContext(ctx, `UPDATE pe_event_subscription SET
		rev = rev + 1,
		event_type = :event_type, event_name = :event_name, execution_id = :execution_id,
		activity_id = :activity_id, configuration = :configuration
		WHERE id = :id AND rev = :rev`, eventSubToRow(sub))
	if err != nil {
		return fmt.Errorf("更新事件订阅失败: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新事件订阅失败: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: 事件订阅%s（版本%d）", storage.ErrOptimisticLock, sub.ID, sub.Revision)
	}
	sub.Revision++
	return nil
}

func (m *eventSubDM) Delete(ctx context.Context, id string) error {
	q := m.s.rebind(`DELETE FROM pe_event_subscription WHERE id = ?`)
	if _, err := m.s.tx.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("删除事件订阅失败: %w", err)
	}
	return nil
}

func (m *eventSubDM) FindByExecutionID(ctx context.Context, executionID string) ([]*entity.EventSubscription, error) {
	var rows []eventSubRow
	q := m.s.rebind(eventSubSelect + ` WHERE execution_id = ? ORDER BY create_time, id`)
	if err := m.s.tx.SelectContext(ctx, &rows, q, executionID); err != nil {
		return nil, fmt.Errorf("查询事件订阅列表失败: %w", err)
	}
	out := make([]*entity.EventSubscription, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, nil
}

func (m *eventSubDM) DeleteByExecutionID(ctx context.Context, executionID string) error {
	q := m.s.rebind(`DELETE FROM pe_event_subscription WHERE execution_id = ?`)
	if _, err := m.s.tx.ExecContext(ctx, q, executionID); err != nil {
		return fmt.Errorf("批量删除事件订阅失败: %w", err)
	}
	return nil
}

const identityLinkSelect = `SELECT id, link_type, user_id, group_id, task_id,
	proc_inst_id, scope_def_id FROM pe_identity_link`

type identityLinkDM struct {
	s *session
}

func (m *identityLinkDM) FindByTaskID(ctx context.Context, taskID string) ([]*entity.IdentityLink, error) {
	q := m.s.rebind(identityLinkSelect + ` WHERE task_id = ? ORDER BY id`)
	return m.selectMany(ctx, q, taskID)
}

func (m *identityLinkDM) FindByProcessInstanceID(ctx context.Context, processInstanceID string) ([]*entity.IdentityLink, error) {
	q := m.s.rebind(identityLinkSelect + ` WHERE proc_inst_id = ? ORDER BY id`)
	return m.selectMany(ctx, q, processInstanceID)
}

func (m *identityLinkDM) Insert(ctx context.Context, l *entity.IdentityLink) error {
	_, err := m.s.tx.NamedExecContext(ctx, `INSERT INTO pe_identity_link (
		id, link_type, user_id, group_id, task_id, proc_inst_id, scope_def_id
	) VALUES (
		:id, :link_type, :user_id, :group_id, :task_id, :proc_inst_id, :scope_def_id
	)`, identityLinkToRow(l))
	if err != nil {
		return fmt.Errorf("插入身份关联失败: %w", err)
	}
	return nil
}

func (m *identityLinkDM) Delete(ctx context.Context, id string) error {
	q := m.s.rebind(`DELETE FROM pe_identity_link WHERE id = ?`)
	if _, err := m.s.tx.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("删除身份关联失败: %w", err)
	}
	return nil
}

func (m *identityLinkDM) DeleteByTaskID(ctx context.Context, taskID string) error {
	q := m.s.rebind(`DELETE FROM pe_identity_link WHERE task_id = ?`)
	if _, err := m.s.tx.ExecContext(ctx, q, taskID); err != nil {
		return fmt.Errorf("批量删除身份关联失败: %w", err)
	}
	return nil
}

func (m *identityLinkDM) DeleteByProcessInstanceID(ctx context.Context, processInstanceID string) error {
	q := m.s.rebind(`DELETE FROM pe_identity_link WHERE proc_inst_id = ?`)
	if _, err := m.s.tx.ExecContext(ctx, q, processInstanceID); err != nil {
		return fmt.Errorf("批量删除身份关联失败: %w", err)
	}
	return nil
}

func (m *identityLinkDM) selectMany(ctx context.Context, query string, args ...any) ([]*entity.IdentityLink, error) {
	var rows []identityLinkRow
	if err := m.s.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("查询身份关联列表失败: %w", err)
	}
	out := make([]*entity.IdentityLink, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, nil
}

type entityLinkDM struct {
	s *session
}

func (m *entityLinkDM) FindByRootProcessInstanceID(ctx context.Context, rootProcessInstanceID string) ([]*entity.EntityLink, error) {
	var rows []entityLinkRow
	q := m.s.rebind(`SELECT id, link_type, scope_id, scope_type, ref_scope_id, ref_scope_type,
		root_scope_id, root_scope_type, parent_element_id, root_proc_inst_id,
		hierarchy_type, create_time FROM pe_entity_link WHERE root_proc_inst_id = ? ORDER BY create_time, id`)
	if err := m.s.tx.SelectContext(ctx, &rows, q, rootProcessInstanceID); err != nil {
		return nil, fmt.Errorf("查询实体关联列表失败: %w", err)
	}
	out := make([]*entity.EntityLink, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, nil
}

func (m *entityLinkDM) Insert(ctx context.Context, l *entity.EntityLink) error {
	_, err := m.s.tx.NamedExecContext(ctx, `INSERT INTO pe_entity_link (
		id, link_type, scope_id, scope_type, ref_scope_id, ref_scope_type,
		root_scope_id, root_scope_type, parent_element_id, root_proc_inst_id,
		hierarchy_type, create_time
	) VALUES (
		:id, :link_type, :scope_id, :scope_type, :ref_scope_id, :ref_scope_type,
		:root_scope_id, :root_scope_type, :parent_element_id, :root_proc_inst_id,
		:hierarchy_type, :create_time
	)`, entityLinkToRow(l))
	if err != nil {
		return fmt.Errorf("插入实体关联失败: %w", err)
	}
	return nil
}

func (m *entityLinkDM) DeleteByRootProcessInstanceID(ctx context.Context, rootProcessInstanceID string) error {
	q := m.s.rebind(`DELETE FROM pe_entity_link WHERE root_proc_inst_id = ?`)
	if _, err := m.s.tx.ExecContext(ctx, q, rootProcessInstanceID); err != nil {
		return fmt.Errorf("批量删除实体关联失败: %w", err)
	}
	return nil
}

const activityInstanceSelect = `SELECT id, rev, activity_id, activity_name, activity_type,
	execution_id, proc_inst_id, proc_def_id, task_id, assignee, called_proc_inst_id,
	start_time, end_time, duration_ms, delete_reason, tenant_id FROM pe_activity_instance`

type activityInstanceDM struct {
	s *session
}

func (m *activityInstanceDM) FindByID(ctx context.Context, id string) (*entity.ActivityInstance, error) {
	var r activityInstanceRow
	q := m.s.rebind(activityInstanceSelect + ` WHERE id = ?`)
	if err := m.s.tx.GetContext(ctx, &r, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("查询活动实例失败: %w", err)
	}
	return r.toEntity(), nil
}

func (m *activityInstanceDM) Insert(ctx context.Context, a *entity.ActivityInstance) error {
	_, err := m.s.tx.NamedExecContext(ctx, `INSERT INTO pe_activity_instance (
		id, rev, activity_id, activity_name, activity_type, execution_id, proc_inst_id,
		proc_def_id, task_id, assignee, called_proc_inst_id, start_time, end_time,
		duration_ms, delete_reason, tenant_id
	) VALUES (
		:id, :rev, :activity_id, :activity_name, :activity_type, :execution_id, :proc_inst_id,
		:proc_def_id, :task_id, :assignee, :called_proc_inst_id, :start_time, :end_time,
		:duration_ms, :delete_reason, :tenant_id
	)`, activityInstanceToRow(a))
	if err != nil {
		return fmt.Errorf("插入活动实例失败: %w", err)
	}
	return nil
}

func (m *activityInstanceDM) Update(ctx context.Context, a *entity.ActivityInstance) error {
	res, err := m.s.tx.NamedExecContext(ctx, `UPDATE pe_activity_instance SET
		rev = rev + 1,
		activity_name = :activity_name, activity_type = :activity_type,
		execution_id = :execution_id, task_id = :task_id, assignee = :assignee,
		called_proc_inst_id = :called_proc_inst_id, end_time = :end_time,
		duration_ms = :duration_ms, delete_reason = :delete_reason
		WHERE id = :id AND rev = :rev`, activityInstanceToRow(a))
	if err != nil {
		return fmt.Errorf("更新活动实例失败: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新活动实例失败: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: 活动实例%s（版本%d）", storage.ErrOptimisticLock, a.ID, a.Revision)
	}
	a.Revision++
	return nil
}

func (m *activityInstanceDM) Delete(ctx context.Context, id string) error {
	q := m.s.rebind(`DELETE FROM pe_activity_instance WHERE id = ?`)
	if _, err := m.s.tx.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("删除活动实例失败: %w", err)
	}
	return nil
}

func (m *activityInstanceDM) FindOpenByExecutionIDAndActivityID(ctx context.Context, executionID, activityID string) (*entity.ActivityInstance, error) {
	var r activityInstanceRow
	q := m.s.rebind(activityInstanceSelect + ` WHERE execution_id = ? AND activity_id = ? AND end_time IS NULL`)
	if err := m.s.tx.GetContext(ctx, &r, q, executionID, activityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("查询活动实例失败: %w", err)
	}
	return r.toEntity(), nil
}

func (m *activityInstanceDM) FindByProcessInstanceID(ctx context.Context, processInstanceID string) ([]*entity.ActivityInstance, error) {
	var rows []activityInstanceRow
	q := m.s.rebind(activityInstanceSelect + ` WHERE proc_inst_id = ? ORDER BY start_time, id`)
	if err := m.s.tx.SelectContext(ctx, &rows, q, processInstanceID); err != nil {
		return nil, fmt.Errorf("查询活动实例列表失败: %w", err)
	}
	out := make([]*entity.ActivityInstance, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, nil
}

func (m *activityInstanceDM) DeleteByProcessInstanceID(ctx context.Context, processInstanceID string) error {
	q := m.s.rebind(`DELETE FROM pe_activity_instance WHERE proc_inst_id = ?`)
	if _, err := m.s.tx.ExecContext(ctx, q, processInstanceID); err != nil {
		return fmt.Errorf("批量删除活动实例失败: %w", err)
	}
	return nil
}

func (m *activityInstanceDM) DeleteByExecutionID(ctx context.Context, executionID string) error {
	q := m.s.rebind(`DELETE FROM pe_activity_instance WHERE execution_id = ?`)
	if _, err := m.s.tx.ExecContext(ctx, q, executionID); err != nil {
		return fmt.Errorf("批量删除活动实例失败: %w", err)
	}
	return nil
}

type historyDM struct {
	s *session
}

func (m *historyDM) InsertProcessInstance(ctx context.Context, h *storage.HistoricProcessInstance) error {
	_, err := m.s.tx.NamedExecContext(ctx, `INSERT INTO pe_hist_proc_inst (
		id, proc_def_id, business_key, start_time, end_time, duration_ms,
		start_user_id, start_act_id, end_act_id, end_state, delete_reason, tenant_id
	) VALUES (
		:id, :proc_def_id, :business_key, :start_time, :end_time, :duration_ms,
		:start_user_id, :start_act_id, :end_act_id, :end_state, :delete_reason, :tenant_id
	)`, histProcInstToRow(h))
	if err != nil {
		return fmt.Errorf("插入历史流程实例失败: %w", err)
	}
	return nil
}

func (m *historyDM) FindProcessInstanceByID(ctx context.Context, id string) (*storage.HistoricProcessInstance, error) {
	var r histProcInstRow
	q := m.s.rebind(`SELECT id, proc_def_id, business_key, start_time, end_time, duration_ms,
		start_user_id, start_act_id, end_act_id, end_state, delete_reason, tenant_id
		FROM pe_hist_proc_inst WHERE id = ?`)
	if err := m.s.tx.GetContext(ctx, &r, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("查询历史流程实例失败: %w", err)
	}
	return r.toRecord(), nil
}

func (m *historyDM) UpdateProcessInstance(ctx context.Context, h *storage.HistoricProcessInstance) error {
	_, err := m.s.tx.NamedExecContext(ctx, `UPDATE pe_hist_proc_inst SET
		business_key = :business_key, end_time = :end_time, duration_ms = :duration_ms,
		end_act_id = :end_act_id, end_state = :end_state, delete_reason = :delete_reason
		WHERE id = :id`, histProcInstToRow(h))
	if err != nil {
		return fmt.Errorf("更新历史流程实例失败: %w", err)
	}
	return nil
}

func (m *historyDM) InsertActivityInstance(ctx context.Context, h *storage.HistoricActivityInstance) error {
	_, err := m.s.tx.NamedExecContext(ctx, `INSERT INTO pe_hist_act_inst (
		id, activity_id, activity_name, activity_type, execution_id, proc_inst_id,
		task_id, assignee, start_time, end_time, duration_ms, delete_reason
	) VALUES (
		:id, :activity_id, :activity_name, :activity_type, :execution_id, :proc_inst_id,
		:task_id, :assignee, :start_time, :end_time, :duration_ms, :delete_reason
	)`, histActInstToRow(h))
	if err != nil {
		return fmt.Errorf("插入历史活动实例失败: %w", err)
	}
	return nil
}

func (m *historyDM) UpdateActivityInstance(ctx context.Context, h *storage.HistoricActivityInstance) error {
	_, err := m.s.tx.NamedExecContext(ctx, `UPDATE pe_hist_act_inst SET
		activity_name = :activity_name, activity_type = :activity_type,
		execution_id = :execution_id, task_id = :task_id, assignee = :assignee,
		end_time = :end_time, duration_ms = :duration_ms, delete_reason = :delete_reason
		WHERE id = :id`, histActInstToRow(h))
	if err != nil {
		return fmt.Errorf("更新历史活动实例失败: %w", err)
	}
	return nil
}

func (m *historyDM) FindOpenActivityInstance(ctx context.Context, executionID, activityID string) (*storage.HistoricActivityInstance, error) {
	var r histActInstRow
	q := m.s.rebind(`SELECT id, activity_id, activity_name, activity_type, execution_id,
		proc_inst_id, task_id, assignee, start_time, end_time, duration_ms, delete_reason
		FROM pe_hist_act_inst WHERE execution_id = ? AND activity_id = ? AND end_time IS NULL`)
	if err := m.s.tx.GetContext(ctx, &r, q, executionID, activityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("查询历史活动实例失败: %w", err)
	}
	return r.toRecord(), nil
}

func (m *historyDM) UpsertVariable(ctx context.Context, h *storage.HistoricVariable) error {
	row := histVariableToRow(h)
	res, err := m.s.tx.NamedExecContext(ctx, `UPDATE pe_hist_variable SET
		type_name = :type_name, text_value = :text_value,
		last_updated_time = :last_updated_time, removed = :removed
		WHERE id = :id`, row)
	if err != nil {
		return fmt.Errorf("更新历史变量失败: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新历史变量失败: %w", err)
	}
	if n > 0 {
		return nil
	}
	_, err = m.s.tx.NamedExecContext(ctx, `INSERT INTO pe_hist_variable (
		id, name, type_name, text_value, execution_id, proc_inst_id, task_id,
		create_time, last_updated_time, removed
	) VALUES (
		:id, :name, :type_name, :text_value, :execution_id, :proc_inst_id, :task_id,
		:create_time, :last_updated_time, :removed
	)`, row)
	if err != nil {
		return fmt.Errorf("插入历史变量失败: %w", err)
	}
	return nil
}

func (m *historyDM) InsertDetail(ctx context.Context, d *storage.HistoricDetail) error {
	_, err := m.s.tx.NamedExecContext(ctx, `INSERT INTO pe_hist_detail (
		id, detail_type, variable_name, type_name, text_value,
		source_execution_id, proc_inst_id, time_
	) VALUES (
		:id, :detail_type, :variable_name, :type_name, :text_value,
		:source_execution_id, :proc_inst_id, :time_
	)`, histDetailToRow(d))
	if err != nil {
		return fmt.Errorf("插入历史明细失败: %w", err)
	}
	return nil
}

func (m *historyDM) DeleteByProcessInstanceID(ctx context.Context, processInstanceID string) error {
	stmts := []string{
		`DELETE FROM pe_hist_detail WHERE proc_inst_id = ?`,
		`DELETE FROM pe_hist_variable WHERE proc_inst_id = ?`,
		`DELETE FROM pe_hist_act_inst WHERE proc_inst_id = ?`,
		`DELETE FROM pe_hist_proc_inst WHERE id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := m.s.tx.ExecContext(ctx, m.s.rebind(stmt), processInstanceID); err != nil {
			return fmt.Errorf("清除流程实例历史失败: %w", err)
		}
	}
	return nil
}
