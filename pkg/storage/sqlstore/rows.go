package sqlstore

import (
	"database/sql"
	"time"

	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/storage"
)

// 各表的行对象（内部使用）
// 布尔列统一按整数读写，兼容三种方言。

type executionRow struct {
	ID                     string       `db:"id"`
	Rev                    int          `db:"rev"`
	ProcDefID              string       `db:"proc_def_id"`
	ProcDefKey             string       `db:"proc_def_key"`
	ProcDefName            string       `db:"proc_def_name"`
	ProcInstID             string       `db:"proc_inst_id"`
	RootProcInstID         string       `db:"root_proc_inst_id"`
	ParentID               string       `db:"parent_id"`
	SuperExecID            string       `db:"super_exec_id"`
	ActivityID             string       `db:"activity_id"`
	ActivityName           string       `db:"activity_name"`
	IsActive               int          `db:"is_active"`
	IsEnded                int          `db:"is_ended"`
	IsScope                int          `db:"is_scope"`
	IsConcurrent           int          `db:"is_concurrent"`
	IsEventScope           int          `db:"is_event_scope"`
	IsMiRoot               int          `db:"is_mi_root"`
	SuspensionState        int          `db:"suspension_state"`
	BusinessKey            string       `db:"business_key"`
	TenantID               string       `db:"tenant_id"`
	DeleteReason           string       `db:"delete_reason"`
	StartTime              time.Time    `db:"start_time"`
	StartUserID            string       `db:"start_user_id"`
	StartActID             string       `db:"start_act_id"`
	LockTime               sql.NullTime `db:"lock_time"`
	CallbackID             string       `db:"callback_id"`
	CallbackType           string       `db:"callback_type"`
	PropagatedStageInstID  string       `db:"propagated_stage_inst_id"`
	IsCountEnabled         int          `db:"is_count_enabled"`
	EvtSubCount            int32        `db:"evt_sub_count"`
	TaskCount              int32        `db:"task_count"`
	JobCount               int32        `db:"job_count"`
	TimerJobCount          int32        `db:"timer_job_count"`
	SuspJobCount           int32        `db:"susp_job_count"`
	DeadLetterJobCount     int32        `db:"dead_letter_job_count"`
	ExtWorkerJobCount      int32        `db:"ext_worker_job_count"`
	VarCount               int32        `db:"var_count"`
	IdentityLinkCountValue int32        `db:"id_link_count"`
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func executionToRow(e *entity.Execution) *executionRow {
	r := &executionRow{
		ID:                    e.ID,
		Rev:                   e.Revision,
		ProcDefID:             e.ProcessDefinitionID,
		ProcDefKey:            e.ProcessDefinitionKey,
		ProcDefName:           e.ProcessDefinitionName,
		ProcInstID:            e.ProcessInstanceID,
		RootProcInstID:        e.RootProcessInstanceID,
		ParentID:              e.ParentID,
		SuperExecID:           e.SuperExecutionID,
		ActivityID:            e.ActivityID,
		ActivityName:          e.ActivityName,
		IsActive:              boolToInt(e.IsActive),
		IsEnded:               boolToInt(e.IsEnded),
		IsScope:               boolToInt(e.IsScope),
		IsConcurrent:          boolToInt(e.IsConcurrent),
		IsEventScope:          boolToInt(e.IsEventScope),
		IsMiRoot:              boolToInt(e.IsMultiInstanceRoot),
		SuspensionState:       e.SuspensionState,
		BusinessKey:           e.BusinessKey,
		TenantID:              e.TenantID,
		DeleteReason:          e.DeleteReason,
		StartTime:             e.StartTime,
		StartUserID:           e.StartUserID,
		StartActID:            e.StartActivityID,
		CallbackID:            e.CallbackID,
		CallbackType:          e.CallbackType,
		PropagatedStageInstID: e.PropagatedStageInstanceID,
		IsCountEnabled:        boolToInt(e.Counts.IsCountEnabled),

		EvtSubCount:            e.EventSubscriptionCount(),
		TaskCount:              e.TaskCount(),
		JobCount:               e.JobCount(),
		TimerJobCount:          e.TimerJobCount(),
		SuspJobCount:           e.SuspendedJobCount(),
		DeadLetterJobCount:     e.DeadLetterJobCount(),
		ExtWorkerJobCount:      e.ExternalWorkerJobCount(),
		VarCount:               e.VariableCount(),
		IdentityLinkCountValue: e.IdentityLinkCount(),
	}
	if e.LockTime != nil {
		r.LockTime = sql.NullTime{Time: *e.LockTime, Valid: true}
	}
	return r
}

func (r *executionRow) toEntity() *entity.Execution {
	e := &entity.Execution{
		ID:                        r.ID,
		Revision:                  r.Rev,
		ProcessDefinitionID:       r.ProcDefID,
		ProcessDefinitionKey:      r.ProcDefKey,
		ProcessDefinitionName:     r.ProcDefName,
		ProcessInstanceID:         r.ProcInstID,
		RootProcessInstanceID:     r.RootProcInstID,
		ParentID:                  r.ParentID,
		SuperExecutionID:          r.SuperExecID,
		ActivityID:                r.ActivityID,
		ActivityName:              r.ActivityName,
		IsActive:                  r.IsActive != 0,
		IsEnded:                   r.IsEnded != 0,
		IsScope:                   r.IsScope != 0,
		IsConcurrent:              r.IsConcurrent != 0,
		IsEventScope:              r.IsEventScope != 0,
		IsMultiInstanceRoot:       r.IsMiRoot != 0,
		SuspensionState:           r.SuspensionState,
		BusinessKey:               r.BusinessKey,
		TenantID:                  r.TenantID,
		DeleteReason:              r.DeleteReason,
		StartTime:                 r.StartTime,
		StartUserID:               r.StartUserID,
		StartActivityID:           r.StartActID,
		CallbackID:                r.CallbackID,
		CallbackType:              r.CallbackType,
		PropagatedStageInstanceID: r.PropagatedStageInstID,
	}
	if r.LockTime.Valid {
		lt := r.LockTime.Time
		e.LockTime = &lt
	}
	e.Counts.IsCountEnabled = r.IsCountEnabled != 0
	e.Counts.EventSubscriptions.SetBase(r.EvtSubCount)
	e.Counts.Tasks.SetBase(r.TaskCount)
	e.Counts.Jobs.SetBase(r.JobCount)
	e.Counts.TimerJobs.SetBase(r.TimerJobCount)
	e.Counts.SuspendedJobs.SetBase(r.SuspJobCount)
	e.Counts.DeadLetterJobs.SetBase(r.DeadLetterJobCount)
	e.Counts.ExternalWorkerJobs.SetBase(r.ExtWorkerJobCount)
	e.Counts.Variables.SetBase(r.VarCount)
	e.Counts.IdentityLinks.SetBase(r.IdentityLinkCountValue)
	return e
}

type taskRow struct {
	ID              string       `db:"id"`
	Rev             int          `db:"rev"`
	Name            string       `db:"name"`
	Description     string       `db:"description"`
	TaskDefKey      string       `db:"task_def_key"`
	ExecutionID     string       `db:"execution_id"`
	ProcInstID      string       `db:"proc_inst_id"`
	ProcDefID       string       `db:"proc_def_id"`
	Assignee        string       `db:"assignee"`
	Owner           string       `db:"owner"`
	Priority        int          `db:"priority"`
	CreateTime      time.Time    `db:"create_time"`
	DueDate         sql.NullTime `db:"due_date"`
	ClaimTime       sql.NullTime `db:"claim_time"`
	SuspensionState int          `db:"suspension_state"`
	TenantID        string       `db:"tenant_id"`
	IsCountEnabled  int          `db:"is_count_enabled"`
	VarCount        int32        `db:"var_count"`
	IDLinkCount     int32        `db:"id_link_count"`
}

func taskToRow(t *entity.Task) *taskRow {
	r := &taskRow{
		ID:              t.ID,
		Rev:             t.Revision,
		Name:            t.Name,
		Description:     t.Description,
		TaskDefKey:      t.TaskDefKey,
		ExecutionID:     t.ExecutionID,
		ProcInstID:      t.ProcessInstanceID,
		ProcDefID:       t.ProcessDefinitionID,
		Assignee:        t.Assignee,
		Owner:           t.Owner,
		Priority:        t.Priority,
		CreateTime:      t.CreateTime,
		SuspensionState: t.SuspensionState,
		TenantID:        t.TenantID,
		IsCountEnabled:  boolToInt(t.IsCountEnabled),
		VarCount:        t.VariableCount,
		IDLinkCount:     t.IdentityLinkCount,
	}
	if t.DueDate != nil {
		r.DueDate = sql.NullTime{Time: *t.DueDate, Valid: true}
	}
	if t.ClaimTime != nil {
		r.ClaimTime = sql.NullTime{Time: *t.ClaimTime, Valid: true}
	}
	return r
}

func (r *taskRow) toEntity() *entity.Task {
	t := &entity.Task{
		ID:                  r.ID,
		Revision:            r.Rev,
		Name:                r.Name,
		Description:         r.Description,
		TaskDefKey:          r.TaskDefKey,
		ExecutionID:         r.ExecutionID,
		ProcessInstanceID:   r.ProcInstID,
		ProcessDefinitionID: r.ProcDefID,
		Assignee:            r.Assignee,
		Owner:               r.Owner,
		Priority:            r.Priority,
		CreateTime:          r.CreateTime,
		SuspensionState:     r.SuspensionState,
		TenantID:            r.TenantID,
		IsCountEnabled:      r.IsCountEnabled != 0,
		VariableCount:       r.VarCount,
		IdentityLinkCount:   r.IDLinkCount,
	}
	if r.DueDate.Valid {
		d := r.DueDate.Time
		t.DueDate = &d
	}
	if r.ClaimTime.Valid {
		ct := r.ClaimTime.Time
		t.ClaimTime = &ct
	}
	return t
}

type variableRow struct {
	ID          string          `db:"id"`
	Rev         int             `db:"rev"`
	Name        string          `db:"name"`
	TypeName    string          `db:"type_name"`
	ExecutionID string          `db:"execution_id"`
	ProcInstID  string          `db:"proc_inst_id"`
	TaskID      string          `db:"task_id"`
	ScopeID     string          `db:"scope_id"`
	ScopeType   string          `db:"scope_type"`
	TextValue   string          `db:"text_value"`
	LongValue   sql.NullInt64   `db:"long_value"`
	DoubleValue sql.NullFloat64 `db:"double_value"`
	ByteArrayID string          `db:"byte_array_id"`
}

func variableToRow(v *entity.VariableInstance) *variableRow {
	r := &variableRow{
		ID:          v.ID,
		Rev:         v.Revision,
		Name:        v.Name,
		TypeName:    v.TypeName,
		ExecutionID: v.ExecutionID,
		ProcInstID:  v.ProcessInstanceID,
		TaskID:      v.TaskID,
		ScopeID:     v.ScopeID,
		ScopeType:   v.ScopeType,
		TextValue:   v.TextValue,
		ByteArrayID: v.ByteArrayID,
	}
	if v.LongValue != nil {
		r.LongValue = sql.NullInt64{Int64: *v.LongValue, Valid: true}
	}
	if v.DoubleValue != nil {
		r.DoubleValue = sql.NullFloat64{Float64: *v.DoubleValue, Valid: true}
	}
	return r
}

func (r *variableRow) toEntity() *entity.VariableInstance {
	v := &entity.VariableInstance{
		ID:                r.ID,
		Revision:          r.Rev,
		Name:              r.Name,
		TypeName:          r.TypeName,
		ExecutionID:       r.ExecutionID,
		ProcessInstanceID: r.ProcInstID,
		TaskID:            r.TaskID,
		ScopeID:           r.ScopeID,
		ScopeType:         r.ScopeType,
		TextValue:         r.TextValue,
		ByteArrayID:       r.ByteArrayID,
	}
	if r.LongValue.Valid {
		lv := r.LongValue.Int64
		v.LongValue = &lv
	}
	if r.DoubleValue.Valid {
		dv := r.DoubleValue.Float64
		v.DoubleValue = &dv
	}
	return v
}

type jobRow struct {
	ID             string       `db:"id"`
	Rev            int          `db:"rev"`
	JobKind        string       `db:"job_kind"`
	HandlerType    string       `db:"handler_type"`
	HandlerCfg     string       `db:"handler_cfg"`
	ExecutionID    string       `db:"execution_id"`
	ProcInstID     string       `db:"proc_inst_id"`
	ProcDefID      string       `db:"proc_def_id"`
	DueDate        sql.NullTime `db:"due_date"`
	RepeatExpr     string       `db:"repeat_expr"`
	Retries        int          `db:"retries"`
	Exclusive      int          `db:"exclusive"`
	LockOwner      string       `db:"lock_owner"`
	LockExpiration sql.NullTime `db:"lock_expiration"`
	ExceptionMsg   string       `db:"exception_msg"`
	TenantID       string       `db:"tenant_id"`
	CreateTime     time.Time    `db:"create_time"`
}

func jobToRow(j *entity.Job) *jobRow {
	r := &jobRow{
		ID:           j.ID,
		Rev:          j.Revision,
		JobKind:      string(j.JobKind),
		HandlerType:  j.HandlerType,
		HandlerCfg:   j.HandlerCfg,
		ExecutionID:  j.ExecutionID,
		ProcInstID:   j.ProcessInstanceID,
		ProcDefID:    j.ProcessDefinitionID,
		RepeatExpr:   j.RepeatExpr,
		Retries:      j.Retries,
		Exclusive:    boolToInt(j.Exclusive),
		LockOwner:    j.LockOwner,
		ExceptionMsg: j.ExceptionMessage,
		TenantID:     j.TenantID,
		CreateTime:   j.CreateTime,
	}
	if j.DueDate != nil {
		r.DueDate = sql.NullTime{Time: *j.DueDate, Valid: true}
	}
	if j.LockExpiration != nil {
		r.LockExpiration = sql.NullTime{Time: *j.LockExpiration, Valid: true}
	}
	return r
}

func (r *jobRow) toEntity() *entity.Job {
	j := &entity.Job{
		ID:                  r.ID,
		Revision:            r.Rev,
		JobKind:             entity.JobKind(r.JobKind),
		HandlerType:         r.HandlerType,
		HandlerCfg:          r.HandlerCfg,
		ExecutionID:         r.ExecutionID,
		ProcessInstanceID:   r.ProcInstID,
		ProcessDefinitionID: r.ProcDefID,
		RepeatExpr:          r.RepeatExpr,
		Retries:             r.Retries,
		Exclusive:           r.Exclusive != 0,
		LockOwner:           r.LockOwner,
		ExceptionMessage:    r.ExceptionMsg,
		TenantID:            r.TenantID,
		CreateTime:          r.CreateTime,
	}
	if r.DueDate.Valid {
		d := r.DueDate.Time
		j.DueDate = &d
	}
	if r.LockExpiration.Valid {
		le := r.LockExpiration.Time
		j.LockExpiration = &le
	}
	return j
}

type eventSubRow struct {
	ID            string    `db:"id"`
	Rev           int       `db:"rev"`
	EventType     string    `db:"event_type"`
	EventName     string    `db:"event_name"`
	ExecutionID   string    `db:"execution_id"`
	ProcInstID    string    `db:"proc_inst_id"`
	ProcDefID     string    `db:"proc_def_id"`
	ActivityID    string    `db:"activity_id"`
	Configuration string    `db:"configuration"`
	CreateTime    time.Time `db:"create_time"`
	TenantID      string    `db:"tenant_id"`
}

func eventSubToRow(sub *entity.EventSubscription) *eventSubRow {
	return &eventSubRow{
		ID:            sub.ID,
		Rev:           sub.Revision,
		EventType:     sub.EventType,
		EventName:     sub.EventName,
		ExecutionID:   sub.ExecutionID,
		ProcInstID:    sub.ProcessInstanceID,
		ProcDefID:     sub.ProcessDefinitionID,
		ActivityID:    sub.ActivityID,
		Configuration: sub.Configuration,
		CreateTime:    sub.CreateTime,
		TenantID:      sub.TenantID,
	}
}

func (r *eventSubRow) toEntity() *entity.EventSubscription {
	return &entity.EventSubscription{
		ID:                  r.ID,
		Revision:            r.Rev,
		EventType:           r.EventType,
		EventName:           r.EventName,
		ExecutionID:         r.ExecutionID,
		ProcessInstanceID:   r.ProcInstID,
		ProcessDefinitionID: r.ProcDefID,
		ActivityID:          r.ActivityID,
		Configuration:       r.Configuration,
		CreateTime:          r.CreateTime,
		TenantID:            r.TenantID,
	}
}

type identityLinkRow struct {
	ID         string `db:"id"`
	LinkType   string `db:"link_type"`
	UserID     string `db:"user_id"`
	GroupID    string `db:"group_id"`
	TaskID     string `db:"task_id"`
	ProcInstID string `db:"proc_inst_id"`
	ScopeDefID string `db:"scope_def_id"`
}

func identityLinkToRow(l *entity.IdentityLink) *identityLinkRow {
	return &identityLinkRow{
		ID:         l.ID,
		LinkType:   l.LinkType,
		UserID:     l.UserID,
		GroupID:    l.GroupID,
		TaskID:     l.TaskID,
		ProcInstID: l.ProcessInstanceID,
		ScopeDefID: l.ScopeDefinitionID,
	}
}

func (r *identityLinkRow) toEntity() *entity.IdentityLink {
	return &entity.IdentityLink{
		ID:                r.ID,
		LinkType:          r.LinkType,
		UserID:            r.UserID,
		GroupID:           r.GroupID,
		TaskID:            r.TaskID,
		ProcessInstanceID: r.ProcInstID,
		ScopeDefinitionID: r.ScopeDefID,
	}
}

type entityLinkRow struct {
	ID              string    `db:"id"`
	LinkType        string    `db:"link_type"`
	ScopeID         string    `db:"scope_id"`
	ScopeType       string    `db:"scope_type"`
	RefScopeID      string    `db:"ref_scope_id"`
	RefScopeType    string    `db:"ref_scope_type"`
	RootScopeID     string    `db:"root_scope_id"`
	RootScopeType   string    `db:"root_scope_type"`
	ParentElementID string    `db:"parent_element_id"`
	RootProcInstID  string    `db:"root_proc_inst_id"`
	HierarchyType   string    `db:"hierarchy_type"`
	CreateTime      time.Time `db:"create_time"`
}

func entityLinkToRow(l *entity.EntityLink) *entityLinkRow {
	return &entityLinkRow{
		ID:              l.ID,
		LinkType:        l.LinkType,
		ScopeID:         l.ScopeID,
		ScopeType:       l.ScopeType,
		RefScopeID:      l.ReferenceScopeID,
		RefScopeType:    l.ReferenceScopeType,
		RootScopeID:     l.RootScopeID,
		RootScopeType:   l.RootScopeType,
		ParentElementID: l.ParentElementID,
		RootProcInstID:  l.RootProcessInstanceID,
		HierarchyType:   l.HierarchyType,
		CreateTime:      l.CreateTime,
	}
}

func (r *entityLinkRow) toEntity() *entity.EntityLink {
	return &entity.EntityLink{
		ID:                    r.ID,
		LinkType:              r.LinkType,
		ScopeID:               r.ScopeID,
		ScopeType:             r.ScopeType,
		ReferenceScopeID:      r.RefScopeID,
		ReferenceScopeType:    r.RefScopeType,
		RootScopeID:           r.RootScopeID,
		RootScopeType:         r.RootScopeType,
		ParentElementID:       r.ParentElementID,
		RootProcessInstanceID: r.RootProcInstID,
		HierarchyType:         r.HierarchyType,
		CreateTime:            r.CreateTime,
	}
}

type activityInstanceRow struct {
	ID               string        `db:"id"`
	Rev              int           `db:"rev"`
	ActivityID       string        `db:"activity_id"`
	ActivityName     string        `db:"activity_name"`
	ActivityType     string        `db:"activity_type"`
	ExecutionID      string        `db:"execution_id"`
	ProcInstID       string        `db:"proc_inst_id"`
	ProcDefID        string        `db:"proc_def_id"`
	TaskID           string        `db:"task_id"`
	Assignee         string        `db:"assignee"`
	CalledProcInstID string        `db:"called_proc_inst_id"`
	StartTime        time.Time     `db:"start_time"`
	EndTime          sql.NullTime  `db:"end_time"`
	DurationMS       sql.NullInt64 `db:"duration_ms"`
	DeleteReason     string        `db:"delete_reason"`
	TenantID         string        `db:"tenant_id"`
}

func activityInstanceToRow(a *entity.ActivityInstance) *activityInstanceRow {
	r := &activityInstanceRow{
		ID:               a.ID,
		Rev:              a.Revision,
		ActivityID:       a.ActivityID,
		ActivityName:     a.ActivityName,
		ActivityType:     a.ActivityType,
		ExecutionID:      a.ExecutionID,
		ProcInstID:       a.ProcessInstanceID,
		ProcDefID:        a.ProcessDefinitionID,
		TaskID:           a.TaskID,
		Assignee:         a.Assignee,
		CalledProcInstID: a.CalledProcessInstanceID,
		StartTime:        a.StartTime,
		DeleteReason:     a.DeleteReason,
		TenantID:         a.TenantID,
	}
	if a.EndTime != nil {
		r.EndTime = sql.NullTime{Time: *a.EndTime, Valid: true}
	}
	if a.DurationInMS != nil {
		r.DurationMS = sql.NullInt64{Int64: *a.DurationInMS, Valid: true}
	}
	return r
}

func (r *activityInstanceRow) toEntity() *entity.ActivityInstance {
	a := &entity.ActivityInstance{
		ID:                      r.ID,
		Revision:                r.Rev,
		ActivityID:              r.ActivityID,
		ActivityName:            r.ActivityName,
		ActivityType:            r.ActivityType,
		ExecutionID:             r.ExecutionID,
		ProcessInstanceID:       r.ProcInstID,
		ProcessDefinitionID:     r.ProcDefID,
		TaskID:                  r.TaskID,
		Assignee:                r.Assignee,
		CalledProcessInstanceID: r.CalledProcInstID,
		StartTime:               r.StartTime,
		DeleteReason:            r.DeleteReason,
		TenantID:                r.TenantID,
	}
	if r.EndTime.Valid {
		et := r.EndTime.Time
		a.EndTime = &et
	}
	if r.DurationMS.Valid {
		d := r.DurationMS.Int64
		a.DurationInMS = &d
	}
	return a
}

type byteArrayRow struct {
	ID    string `db:"id"`
	Rev   int    `db:"rev"`
	Name  string `db:"name"`
	Bytes []byte `db:"bytes_"`
}

func byteArrayToRow(b *entity.ByteArray) *byteArrayRow {
	return &byteArrayRow{ID: b.ID, Rev: b.Revision, Name: b.Name, Bytes: b.Bytes}
}

func (r *byteArrayRow) toEntity() *entity.ByteArray {
	return &entity.ByteArray{ID: r.ID, Revision: r.Rev, Name: r.Name, Bytes: r.Bytes}
}

type histProcInstRow struct {
	ID           string        `db:"id"`
	ProcDefID    string        `db:"proc_def_id"`
	BusinessKey  string        `db:"business_key"`
	StartTime    time.Time     `db:"start_time"`
	EndTime      sql.NullTime  `db:"end_time"`
	DurationMS   sql.NullInt64 `db:"duration_ms"`
	StartUserID  string        `db:"start_user_id"`
	StartActID   string        `db:"start_act_id"`
	EndActID     string        `db:"end_act_id"`
	EndState     string        `db:"end_state"`
	DeleteReason string        `db:"delete_reason"`
	TenantID     string        `db:"tenant_id"`
}

func histProcInstToRow(h *storage.HistoricProcessInstance) *histProcInstRow {
	r := &histProcInstRow{
		ID:           h.ID,
		ProcDefID:    h.ProcessDefinitionID,
		BusinessKey:  h.BusinessKey,
		StartTime:    h.StartTime,
		StartUserID:  h.StartUserID,
		StartActID:   h.StartActivityID,
		EndActID:     h.EndActivityID,
		EndState:     h.EndState,
		DeleteReason: h.DeleteReason,
		TenantID:     h.TenantID,
	}
	if h.EndTime != nil {
		r.EndTime = sql.NullTime{Time: *h.EndTime, Valid: true}
	}
	if h.DurationInMS != nil {
		r.DurationMS = sql.NullInt64{Int64: *h.DurationInMS, Valid: true}
	}
	return r
}

func (r *histProcInstRow) toRecord() *storage.HistoricProcessInstance {
	h := &storage.HistoricProcessInstance{
		ID:                  r.ID,
		ProcessDefinitionID: r.ProcDefID,
		BusinessKey:         r.BusinessKey,
		StartTime:           r.StartTime,
		StartUserID:         r.StartUserID,
		StartActivityID:     r.StartActID,
		EndActivityID:       r.EndActID,
		EndState:            r.EndState,
		DeleteReason:        r.DeleteReason,
		TenantID:            r.TenantID,
	}
	if r.EndTime.Valid {
		et := r.EndTime.Time
		h.EndTime = &et
	}
	if r.DurationMS.Valid {
		d := r.DurationMS.Int64
		h.DurationInMS = &d
	}
	return h
}

type histActInstRow struct {
	ID           string        `db:"id"`
	ActivityID   string        `db:"activity_id"`
	ActivityName string        `db:"activity_name"`
	ActivityType string        `db:"activity_type"`
	ExecutionID  string        `db:"execution_id"`
	ProcInstID   string        `db:"proc_inst_id"`
	TaskID       string        `db:"task_id"`
	Assignee     string        `db:"assignee"`
	StartTime    time.Time     `db:"start_time"`
	EndTime      sql.NullTime  `db:"end_time"`
	DurationMS   sql.NullInt64 `db:"duration_ms"`
	DeleteReason string        `db:"delete_reason"`
}

func histActInstToRow(h *storage.HistoricActivityInstance) *histActInstRow {
	r := &histActInstRow{
		ID:           h.ID,
		ActivityID:   h.ActivityID,
		ActivityName: h.ActivityName,
		ActivityType: h.ActivityType,
		ExecutionID:  h.ExecutionID,
		ProcInstID:   h.ProcessInstanceID,
		TaskID:       h.TaskID,
		Assignee:     h.Assignee,
		StartTime:    h.StartTime,
		DeleteReason: h.DeleteReason,
	}
	if h.EndTime != nil {
		r.EndTime = sql.NullTime{Time: *h.EndTime, Valid: true}
	}
	if h.DurationInMS != nil {
		r.DurationMS = sql.NullInt64{Int64: *h.DurationInMS, Valid: true}
	}
	return r
}

func (r *histActInstRow) toRecord() *storage.HistoricActivityInstance {
	h := &storage.HistoricActivityInstance{
		ID:                r.ID,
		ActivityID:        r.ActivityID,
		ActivityName:      r.ActivityName,
		ActivityType:      r.ActivityType,
		ExecutionID:       r.ExecutionID,
		ProcessInstanceID: r.ProcInstID,
		TaskID:            r.TaskID,
		Assignee:          r.Assignee,
		StartTime:         r.StartTime,
		DeleteReason:      r.DeleteReason,
	}
	if r.EndTime.Valid {
		et := r.EndTime.Time
		h.EndTime = &et
	}
	if r.DurationMS.Valid {
		d := r.DurationMS.Int64
		h.DurationInMS = &d
	}
	return h
}

type histVariableRow struct {
	ID              string       `db:"id"`
	Name            string       `db:"name"`
	TypeName        string       `db:"type_name"`
	TextValue       string       `db:"text_value"`
	ExecutionID     string       `db:"execution_id"`
	ProcInstID      string       `db:"proc_inst_id"`
	TaskID          string       `db:"task_id"`
	CreateTime      sql.NullTime `db:"create_time"`
	LastUpdatedTime sql.NullTime `db:"last_updated_time"`
	Removed         int          `db:"removed"`
}

func histVariableToRow(h *storage.HistoricVariable) *histVariableRow {
	r := &histVariableRow{
		ID:          h.ID,
		Name:        h.Name,
		TypeName:    h.TypeName,
		TextValue:   h.TextValue,
		ExecutionID: h.ExecutionID,
		ProcInstID:  h.ProcessInstanceID,
		TaskID:      h.TaskID,
		Removed:     boolToInt(h.Removed),
	}
	if !h.CreateTime.IsZero() {
		r.CreateTime = sql.NullTime{Time: h.CreateTime, Valid: true}
	}
	if !h.LastUpdatedTime.IsZero() {
		r.LastUpdatedTime = sql.NullTime{Time: h.LastUpdatedTime, Valid: true}
	}
	return r
}

type histDetailRow struct {
	ID           string    `db:"id"`
	DetailType   string    `db:"detail_type"`
	VarName      string    `db:"variable_name"`
	TypeName     string    `db:"type_name"`
	TextValue    string    `db:"text_value"`
	SourceExecID string    `db:"source_execution_id"`
	ProcInstID   string    `db:"proc_inst_id"`
	Time         time.Time `db:"time_"`
}

func histDetailToRow(d *storage.HistoricDetail) *histDetailRow {
	return &histDetailRow{
		ID:           d.ID,
		DetailType:   d.DetailType,
		VarName:      d.VariableName,
		TypeName:     d.TypeName,
		TextValue:    d.TextValue,
		SourceExecID: d.SourceExecutionID,
		ProcInstID:   d.ProcessInstanceID,
		Time:         d.Time,
	}
}
