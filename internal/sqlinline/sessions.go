package sqlinline

// QCreateTryOnSession validates ownership, consumes monthly quota and an
// active-session slot, and inserts the session plus its join rows in a single
// statement. The quota consume is a conditional upsert on the user's
// user_quotas row: the row lock serializes concurrent creates and the update
// condition is re-checked against the locked row, so two racing requests
// cannot both slip past a limit the way count(*) snapshots under read
// committed would. When any check fails nothing is inserted and the returned
// id is null; the counters let the handler report which check failed.
const QCreateTryOnSession = `--sql 7c1f3e7a-92b4-4a1d-8f05-6d2e9b40c311
with input as (
  select
    $1::uuid   as user_id,
    $2::uuid[] as item_ids,
    $3::int    as monthly_limit,
    $4::int    as active_cap,
    date_trunc('month', now())::date as this_month
),
owned as (
  select count(*) as n
  from clothing_items ci, input i
  where ci.id = any(i.item_ids)
    and ci.user_id = i.user_id
    and ci.is_active
),
consumed as (
  insert into user_quotas as q (user_id, month_start, monthly_used, active_count)
  select i.user_id, i.this_month, 1, 1
  from input i
  where (select n from owned) = cardinality(i.item_ids)
    and i.monthly_limit > 0
    and i.active_cap > 0
  on conflict (user_id) do update
  set month_start  = excluded.month_start,
      monthly_used = case when q.month_start = excluded.month_start then q.monthly_used + 1 else 1 end,
      active_count = q.active_count + 1
  where (select n from owned) = (select cardinality(item_ids) from input)
    and (case when q.month_start = excluded.month_start then q.monthly_used else 0 end) < (select monthly_limit from input)
    and q.active_count < (select active_cap from input)
  returning q.user_id
),
ins as (
  insert into try_on_sessions (id, user_id, status, metadata, created_at, updated_at)
  select gen_random_uuid(), c.user_id, 'pending', '{}'::jsonb, now(), now()
  from consumed c
  returning id, created_at
),
ins_items as (
  insert into try_on_session_items (session_id, clothing_item_id)
  select ins.id, unnest(i.item_ids)
  from ins, input i
  returning session_id
)
select
  (select id from ins),
  (select created_at from ins),
  (select n from owned),
  coalesce((select q.monthly_used from user_quotas q, input i
            where q.user_id = i.user_id and q.month_start = i.this_month), 0),
  coalesce((select q.active_count from user_quotas q, input i
            where q.user_id = i.user_id), 0);
`

// QClaimSession moves one pending session to processing. The conditional
// update is the claim: a concurrent claimer scans no rows.
const QClaimSession = `--sql 5b8d0a4e-1f27-4c6b-9e53-a7f41d82b906
update try_on_sessions
set status = 'processing', updated_at = now()
where id = $1::uuid and status = 'pending'
returning id, user_id, created_at;
`

// QClaimNextPending claims the oldest pending session older than the grace
// window, skipping rows locked by concurrent workers.
const QClaimNextPending = `--sql 9e6f2c81-7ad3-4b95-b0e8-3c54f17a6d22
with next_session as (
    select id
    from try_on_sessions
    where status = 'pending'
      and created_at < now() - ($1::int * interval '1 second')
    order by created_at asc
    for update skip locked
    limit 1
),
claimed as (
    update try_on_sessions
    set status = 'processing', updated_at = now()
    where id in (select id from next_session)
    returning id, user_id, created_at
)
select * from claimed;
`

// Terminal transitions release the user's active-session slot, so the
// session update and the user_quotas decrement travel together. The trailing
// select carries the number of transitioned sessions in the command tag.

const QCompleteSession = `--sql 3d94b7f0-58c2-4e19-a6db-81e05c2f74a8
with done as (
  update try_on_sessions
  set status = 'completed',
      result_image_url = $2::text,
      processing_time_ms = $3::bigint,
      completed_at = now(),
      updated_at = now()
  where id = $1::uuid and status = 'processing'
  returning id, user_id
),
released as (
  update user_quotas q
  set active_count = greatest(q.active_count - 1, 0)
  from done
  where q.user_id = done.user_id
  returning q.user_id
)
select id from done;
`

const QFailSession = `--sql b1e6d9c4-0a73-42f8-95b1-7f28e64a0d53
with done as (
  update try_on_sessions
  set status = 'failed',
      error_message = $2::text,
      processing_time_ms = $3::bigint,
      completed_at = now(),
      updated_at = now()
  where id = $1::uuid and status = 'processing'
  returning id, user_id
),
released as (
  update user_quotas q
  set active_count = greatest(q.active_count - 1, 0)
  from done
  where q.user_id = done.user_id
  returning q.user_id
)
select id from done;
`

const QGetSession = `--sql e2a84f16-6b0d-49c7-8e32-1d9f50c37ab4
select id, user_id, status, result_image_url, error_message,
       processing_time_ms, created_at, completed_at, metadata
from try_on_sessions
where id = $1::uuid and user_id = $2::uuid;
`

const QListSessions = `--sql 48c5e0b2-d391-47a6-bf14-92d0a86e15c7
select id, user_id, status, result_image_url, error_message,
       processing_time_ms, created_at, completed_at, metadata
from try_on_sessions
where user_id = $1::uuid
  and ($2::text is null or status = $2::text)
order by created_at desc
limit $3::int offset $4::int;
`

const QCountSessions = `--sql f7b3a928-41ce-4d05-a1f6-8e62d90c43b1
select count(*)
from try_on_sessions
where user_id = $1::uuid
  and ($2::text is null or status = $2::text);
`

// QUpdateSession applies a client-requested transition. The expected current
// status guards against concurrent writers overwriting each other; the result
// and error columns only ever receive values on their own terminal status,
// and a transition into a terminal state releases the active-session slot
// (cancellation also refunds the monthly attempt).
const QUpdateSession = `--sql 0a57c3d8-92ef-46b1-b7a4-5c18f60e29d3
with done as (
  update try_on_sessions
  set status = $4::text,
      result_image_url = case when $4::text = 'completed' then coalesce($5::text, result_image_url) else result_image_url end,
      error_message    = case when $4::text = 'failed' then coalesce($6::text, error_message) else error_message end,
      completed_at = case when $4::text in ('completed','failed','cancelled','timeout') then now() else completed_at end,
      updated_at = now()
  where id = $1::uuid and user_id = $2::uuid and status = $3::text
  returning id, user_id
),
released as (
  update user_quotas q
  set active_count = greatest(q.active_count - 1, 0),
      monthly_used = case when $4::text = 'cancelled' and q.month_start = date_trunc('month', now())::date
                          then greatest(q.monthly_used - 1, 0)
                          else q.monthly_used end
  from done
  where q.user_id = done.user_id
    and $4::text in ('completed','failed','cancelled','timeout')
  returning q.user_id
)
select id from done;
`

// QDeleteSession removes an owned session and its join rows. Deleting a
// session that never reached a terminal state frees its active slot; a
// deleted pending session also refunds the monthly attempt it reserved.
const QDeleteSession = `--sql c8f1407b-3a6d-48e2-90c5-d72b94e8a016
with victim as (
  select id, user_id, status
  from try_on_sessions
  where id = $1::uuid and user_id = $2::uuid
),
del_items as (
  delete from try_on_session_items
  where session_id in (select id from victim)
),
del as (
  delete from try_on_sessions
  where id in (select id from victim)
  returning id
),
released as (
  update user_quotas q
  set active_count = case when v.status in ('pending','processing')
                          then greatest(q.active_count - 1, 0)
                          else q.active_count end,
      monthly_used = case when v.status = 'pending' and q.month_start = date_trunc('month', now())::date
                          then greatest(q.monthly_used - 1, 0)
                          else q.monthly_used end
  from victim v
  where q.user_id = v.user_id
  returning q.user_id
)
select id from del;
`

// QCancelStaleSessions terminalizes pending sessions nobody processed within
// the TTL, releasing their concurrency slots and refunding the monthly
// attempts they reserved.
const QCancelStaleSessions = `--sql 6d20b9e5-c74a-4f38-82d1-40a5e9c16f87
with done as (
  update try_on_sessions
  set status = 'cancelled', completed_at = now(), updated_at = now()
  where status = 'pending'
    and created_at < now() - ($1::int * interval '1 second')
  returning id, user_id
),
released as (
  update user_quotas q
  set active_count = greatest(q.active_count - d.n, 0),
      monthly_used = case when q.month_start = date_trunc('month', now())::date
                          then greatest(q.monthly_used - d.n, 0)
                          else q.monthly_used end
  from (select user_id, count(*)::int as n from done group by user_id) d
  where q.user_id = d.user_id
  returning q.user_id
)
select id from done;
`

// QTimeoutStuckSessions terminalizes processing sessions whose worker died.
// The slot is released; the attempt stays consumed.
const QTimeoutStuckSessions = `--sql 2f8ac16d-50b9-4e74-a3c8-91d67e04b5f2
with done as (
  update try_on_sessions
  set status = 'timeout', completed_at = now(), updated_at = now()
  where status = 'processing'
    and updated_at < now() - ($1::int * interval '1 second')
  returning id, user_id
),
released as (
  update user_quotas q
  set active_count = greatest(q.active_count - d.n, 0)
  from (select user_id, count(*)::int as n from done group by user_id) d
  where q.user_id = d.user_id
  returning q.user_id
)
select id from done;
`

// QSelectSessionItems loads the clothing referenced by a session, in
// insertion order.
const QSelectSessionItems = `--sql a4e92d07-6cb1-483f-95da-2e70c8f41b69
select ci.id, ci.category, ci.name, ci.image_url
from try_on_session_items si
join clothing_items ci on ci.id = si.clothing_item_id
where si.session_id = $1::uuid
order by ci.created_at asc;
`
