package sqlinline

const QInsertGeneration = `--sql 63ed35bb-1513-49e8-8a9d-f3377cfac7b8
insert into generations (id, user_id, reservation_id, prompt, width, height, num_outputs, images, credits_charged, used_free_tier, status, created_at)
values ($1::uuid, $2::uuid, nullif($3::text, '')::uuid, $4::text, $5::int, $6::int, $7::int, $8::jsonb, $9::int, $10::boolean, $11::text, $12::timestamptz);
`

const QListGenerationsForUser = `--sql 43284ff7-4d58-4df6-9e74-13a20a9a849f
select id::text, user_id::text, coalesce(reservation_id::text, ''), prompt, width, height, num_outputs, images, credits_charged, used_free_tier, status, created_at
from generations
where user_id = $1::uuid
order by created_at desc, id desc
limit $2::int;
`

const QSelectGenerationByReservation = `--sql 9c4e2b7a-58d1-4f0e-a3c6-1d7e8b2f4a90
select id::text, user_id::text, coalesce(reservation_id::text, ''), prompt, width, height, num_outputs, images, credits_charged, used_free_tier, status, created_at
from generations
where reservation_id = $1::uuid
limit 1;
`
