package sqlinline

const QStatsSummary = `--sql 75fdb734-859a-4c0f-a983-8a6fd56894b5
select
    (select count(*) from users) as total_users,
    (select count(*) from users where credits_balance > 0) as users_with_credits,
    (select count(*) from users where profile_completed) as completed_profiles,
    (select count(*) from generations) as total_generations,
    (select count(*) from generations where status = 'succeeded') as successful_generations;
`
