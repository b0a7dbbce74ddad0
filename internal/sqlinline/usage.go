package sqlinline

// QInsertUsageEvent records a fire-and-forget usage hook; failures are logged
// and never block the session pipeline.
const QInsertUsageEvent = `--sql e40f651c-a8b3-44c7-a911-bb8a0ed5f6ef
insert into usage_events(id, user_id, session_id, event_type, success, latency_ms, created_at, properties)
values (gen_random_uuid(), $1::uuid, $2::uuid, $3::text, $4::boolean, $5::int, now(), coalesce($6::jsonb, '{}'::jsonb));
`

// QMonthlyUsage reads the same counter the create statement consumes, so the
// reported usage can never disagree with enforcement.
const QMonthlyUsage = `--sql 5f09d8a3-6c47-4be2-91d0-b34a78e15c26
select coalesce((
  select monthly_used
  from user_quotas
  where user_id = $1::uuid
    and month_start = date_trunc('month', now())::date
), 0);
`
