package sqlinline

// Queries against the generation_runs queue. A claim picks one queued run
// with FOR UPDATE SKIP LOCKED, executes exactly the next stage, and either
// requeues the run at the following stage or finishes it.

const QEnqueueRun = `--sql ce2d6363-1a84-4058-998b-2e4c5b8eed3c
insert into generation_runs(
  id,
  selections_hash,
  status,
  stage_index,
  stage_count,
  attempts,
  plan_json,
  trail,
  created_at,
  updated_at
)
values ($1, $2, 'QUEUED', 0, $3, 0, $4, '', now(), now());
`

const QClaimRunStage = `--sql 9be369eb-ce44-4737-9104-023e31e7ebdc
with next_run as (
    select id
    from generation_runs
    where status = 'QUEUED'
    order by updated_at asc
    for update skip locked
    limit 1
),
claimed as (
    update generation_runs
    set status = 'RUNNING', updated_at = now()
    where id in (select id from next_run)
    returning id, selections_hash, stage_index, stage_count, attempts, plan_json, trail
)
select * from claimed;
`

const QAdvanceRunStage = `--sql 8e9b2eab-ca3d-4f58-91a5-02afa51467ae
update generation_runs
set status = 'QUEUED',
    stage_index = $2,
    attempts = 0,
    trail = $3,
    last_error = '',
    updated_at = now()
where id = $1;
`

const QRequeueRunAttempt = `--sql 28b233d1-fb3b-4a78-935c-70569d4f2dee
update generation_runs
set status = 'QUEUED',
    attempts = $2,
    last_error = $3,
    updated_at = now()
where id = $1;
`

const QCompleteRun = `--sql ef047f1a-537b-43b5-baea-de209abb6922
update generation_runs
set status = 'SUCCEEDED',
    trail = $2,
    updated_at = now()
where id = $1;
`

const QFailRun = `--sql 7c6c83c8-ecf9-474c-b9c3-59207e7f6d84
update generation_runs
set status = 'FAILED',
    last_error = $2,
    updated_at = now()
where id = $1;
`
