package sqlinline

const QInsertAiEvent = `--sql 10d3c1d5-b6c0-4ef5-b007-adc9525b9bfc
insert into ai_events(
  id,
  session_id,
  route,
  model,
  country,
  locale,
  properties,
  created_at
)
values ($1, $2, $3, $4, $5, $6, $7, now());
`
