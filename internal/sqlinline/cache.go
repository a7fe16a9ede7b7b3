package sqlinline

// Queries against the generated_images cache. The UNIQUE constraint on
// selections_hash is the only cross-instance synchronization primitive: the
// pending insert either wins the slot or raises a duplicate-key error.

const QDeleteStalePending = `--sql 57200038-af40-407e-9104-8edbffcf2092
delete from generated_images
where selections_hash = $1
  and image_path = '__pending__'
  and created_at < $2;
`

const QInsertPendingEntry = `--sql 1ec3081a-7a3b-4faa-ac38-7afa1e2c16fe
insert into generated_images(
  selections_hash,
  selections_json,
  image_path,
  org_id,
  photo_id,
  step_id,
  buyer_session_id,
  model,
  created_at,
  updated_at
)
values ($1, $2, '__pending__', $3, $4, $5, $6, $7, now(), now());
`

const QReleasePendingEntry = `--sql 6d082480-379c-49d7-b504-8bcfa21100d0
delete from generated_images
where selections_hash = $1
  and image_path = '__pending__';
`

const QDeleteCompletedEntry = `--sql f6d887b8-9e69-4b67-b06e-390cb4a3a9c8
delete from generated_images
where selections_hash = $1
  and image_path <> '__pending__';
`

const QSelectCompletedEntry = `--sql fe0242c8-69b5-4011-bf25-99a5b4abb4a2
select image_path
from generated_images
where selections_hash = $1
  and image_path <> '__pending__';
`

const QSelectEntryStatus = `--sql 65ab2d63-3eb6-4604-a713-6ce4b14be87d
select image_path, updated_at
from generated_images
where selections_hash = $1;
`

const QPublishEntry = `--sql 6b163ed7-f66c-4380-a6ef-b2ab5c1adc56
insert into generated_images(
  selections_hash,
  selections_json,
  image_path,
  prompt,
  org_id,
  photo_id,
  step_id,
  buyer_session_id,
  selections_fingerprint,
  model,
  passes,
  batches,
  created_at,
  updated_at
)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
on conflict (selections_hash) do update
set selections_json = excluded.selections_json,
    image_path = excluded.image_path,
    prompt = excluded.prompt,
    buyer_session_id = excluded.buyer_session_id,
    selections_fingerprint = excluded.selections_fingerprint,
    model = excluded.model,
    passes = excluded.passes,
    batches = excluded.batches,
    updated_at = now();
`
