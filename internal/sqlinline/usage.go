package sqlinline

const QEnsureDailyUsage = `--sql bd7c27a1-195e-4e04-9056-eb440a1511b9
insert into daily_usage (day, credits_used, value_cents, pending_cents, unique_users, updated_at)
values ($1::text, 0, 0, 0, '{}', now())
on conflict (day) do update set day = excluded.day
returning day, credits_used, value_cents, pending_cents, unique_users, updated_at;
`

const QIncrementDailyUsage = `--sql f61ce991-45b0-4208-be34-5c2d646c21a1
insert into daily_usage (day, credits_used, value_cents, pending_cents, unique_users, updated_at)
values ($1::text, $2::int, $3::bigint, 0, array_remove(array[$4::text], ''), now())
on conflict (day) do update set
    credits_used = daily_usage.credits_used + excluded.credits_used,
    value_cents = daily_usage.value_cents + excluded.value_cents,
    unique_users = case
        when $4::text = '' or $4::text = any(daily_usage.unique_users) then daily_usage.unique_users
        else array_append(daily_usage.unique_users, $4::text)
    end,
    updated_at = now();
`

const QListDailyUsageRange = `--sql 2a965b8d-7d7b-47d0-b016-a1db303db7d8
select day, credits_used, value_cents, pending_cents, unique_users, updated_at
from daily_usage
where day between $1::text and $2::text
order by day asc;
`
