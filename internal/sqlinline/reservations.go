package sqlinline

// QDebitBalance only matches when the balance covers the debit.
const QDebitBalance = `--sql a782830b-777a-4d01-9b4a-1157134ad2a0
update users
set credits_balance = credits_balance - $2::int, updated_at = now()
where id = $1::uuid and credits_balance >= $2::int
returning credits_balance;
`

const QRefundBalance = `--sql 596d0333-ce9c-4d2a-98c6-337638750fbd
update users
set credits_balance = credits_balance + $2::int, updated_at = now()
where id = $1::uuid;
`

// QHoldFreeCapacity returns no row when the hold would push the day past the cap.
const QHoldFreeCapacity = `--sql 16d50734-9594-49fa-9fb3-aad2ccf0c64d
insert into daily_usage (day, credits_used, value_cents, pending_cents, unique_users, updated_at)
select $1::text, 0, 0, $2::bigint, '{}', now()
where $2::bigint <= $3::bigint
on conflict (day) do update set
    pending_cents = daily_usage.pending_cents + excluded.pending_cents,
    updated_at = now()
where daily_usage.value_cents + daily_usage.pending_cents + excluded.pending_cents <= $3::bigint
returning day;
`

const QCommitFreeCapacity = `--sql 9a9fb57e-05aa-43e7-9d38-b02bda6640f7
update daily_usage
set pending_cents = greatest(pending_cents - $2::bigint, 0),
    value_cents = value_cents + $2::bigint,
    credits_used = credits_used + $3::int,
    unique_users = case
        when $4::text = any(unique_users) then unique_users
        else array_append(unique_users, $4::text)
    end,
    updated_at = now()
where day = $1::text;
`

const QReleaseFreeCapacity = `--sql aabb293e-46b7-4273-b033-67f3660f9b20
update daily_usage
set pending_cents = greatest(pending_cents - $2::bigint, 0), updated_at = now()
where day = $1::text;
`

const QInsertReservation = `--sql 57e3d9dc-4343-48cc-bd75-1b3dac255f99
insert into credit_reservations (id, user_id, source, credits, value_cents, day, status, created_at)
values ($1::uuid, $2::uuid, $3::text, $4::int, $5::bigint, $6::text, 'pending', $7::timestamptz);
`

// QSettleReservation only transitions pending reservations.
const QSettleReservation = `--sql 4c4c42e7-c392-481b-a808-6a65d1639b6a
update credit_reservations
set status = $2::text, settled_at = now()
where id = $1::uuid and status = 'pending'
returning id::text, user_id::text, source, credits, value_cents, day, status, created_at, settled_at;
`

const QSelectReservation = `--sql f9b2eb32-6da9-4281-958f-e53b656b2bd3
select id::text, user_id::text, source, credits, value_cents, day, status, created_at, settled_at
from credit_reservations
where id = $1::uuid;
`

const QListStaleReservations = `--sql d3765073-6ca3-415d-84a5-9b4f7f594df0
select id::text, user_id::text, source, credits, value_cents, day, status, created_at, settled_at
from credit_reservations
where status = 'pending' and created_at < $1::timestamptz
order by created_at asc
limit $2::int;
`
