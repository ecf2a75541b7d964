package sqlinline

const QSelectUserByEmail = `--sql a2483583-6089-4738-85ba-b10cc976ec5b
select id::text, email, name, image, credits_balance, profile_completed, country, created_at, updated_at
from users
where lower(email) = lower($1::text)
limit 1;
`

const QSelectUserByID = `--sql 68f001e2-5f10-40c1-bfac-5f11c3f84c18
select id::text, email, name, image, credits_balance, profile_completed, country, created_at, updated_at
from users
where id = $1::uuid
limit 1;
`

// QInsertUser returns the stored row when the email is already registered.
const QInsertUser = `--sql ac9e825f-2f6e-4b9c-bcd8-5b09cb0bb2c4
with inserted as (
    insert into users (id, email, name, image, credits_balance, profile_completed, country, created_at, updated_at)
    values (gen_random_uuid(), lower($1::text), $2::text, $3::text, $4::int, false, $5::text, now(), now())
    on conflict (email) do nothing
    returning id, email, name, image, credits_balance, profile_completed, country, created_at, updated_at
)
select id::text, email, name, image, credits_balance, profile_completed, country, created_at, updated_at
from inserted
union all
select id::text, email, name, image, credits_balance, profile_completed, country, created_at, updated_at
from users
where email = lower($1::text) and not exists (select 1 from inserted)
limit 1;
`

const QSetUserBalance = `--sql b7b0d43d-d5d7-4f5f-b5ae-87acd46db7c3
update users
set credits_balance = $2::int, updated_at = now()
where id = $1::uuid
returning id::text, email, name, image, credits_balance, profile_completed, country, created_at, updated_at;
`

const QAddUserCredits = `--sql 65c3c62d-366c-44dd-abac-659a945bde03
update users
set credits_balance = credits_balance + $2::int, updated_at = now()
where id = $1::uuid and credits_balance + $2::int >= 0
returning id::text, email, name, image, credits_balance, profile_completed, country, created_at, updated_at;
`

const QCompleteUserProfile = `--sql 2ed07ace-b7b1-4818-a23e-b8d431b51f09
update users
set profile_completed = true,
    credits_balance = credits_balance + $2::int,
    updated_at = now()
where id = $1::uuid and profile_completed = false
returning id::text, email, name, image, credits_balance, profile_completed, country, created_at, updated_at;
`
