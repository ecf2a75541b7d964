package db

// Schema is the full Postgres schema. Day keys are UTC "YYYY-MM-DD" strings.
const Schema = `
create table if not exists users (
    id uuid primary key default gen_random_uuid(),
    email text not null unique,
    name text not null default '',
    image text not null default '',
    credits_balance integer not null default 0 check (credits_balance >= 0),
    profile_completed boolean not null default false,
    country text not null default '',
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);

create table if not exists generations (
    id uuid primary key,
    user_id uuid not null references users (id),
    reservation_id uuid,
    prompt text not null,
    width integer not null,
    height integer not null,
    num_outputs integer not null,
    images jsonb not null default '[]'::jsonb,
    credits_charged integer not null default 0,
    used_free_tier boolean not null default false,
    status text not null check (status in ('succeeded', 'failed')),
    created_at timestamptz not null default now()
);

create index if not exists generations_user_created_idx on generations (user_id, created_at desc);

alter table generations add column if not exists reservation_id uuid;
create unique index if not exists generations_reservation_idx on generations (reservation_id) where reservation_id is not null;

create table if not exists daily_usage (
    day text primary key,
    credits_used integer not null default 0,
    value_cents bigint not null default 0,
    pending_cents bigint not null default 0 check (pending_cents >= 0),
    unique_users text[] not null default '{}',
    updated_at timestamptz not null default now()
);

create table if not exists credit_reservations (
    id uuid primary key,
    user_id uuid not null references users (id),
    source text not null check (source in ('paid', 'free')),
    credits integer not null check (credits > 0),
    value_cents bigint not null default 0,
    day text not null,
    status text not null default 'pending' check (status in ('pending', 'committed', 'released')),
    created_at timestamptz not null default now(),
    settled_at timestamptz
);

create index if not exists credit_reservations_pending_idx on credit_reservations (created_at) where status = 'pending';

create table if not exists payments (
    id uuid primary key default gen_random_uuid(),
    provider_ref text not null unique,
    user_id uuid not null references users (id),
    pack_id text not null,
    credits integer not null,
    amount_cents bigint not null,
    valid_until timestamptz,
    created_at timestamptz not null default now()
);
`
