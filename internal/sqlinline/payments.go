package sqlinline

// QInsertPayment returns no row when the provider reference was already recorded.
const QInsertPayment = `--sql 67987849-d36e-46b4-9252-974d2645b8da
insert into payments (id, provider_ref, user_id, pack_id, credits, amount_cents, valid_until, created_at)
values (gen_random_uuid(), $1::text, $2::uuid, $3::text, $4::int, $5::bigint, $6::timestamptz, now())
on conflict (provider_ref) do nothing
returning id::text, created_at;
`
