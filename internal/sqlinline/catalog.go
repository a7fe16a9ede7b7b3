package sqlinline

const QSelectPhotoConfig = `--sql ee31240f-9c05-4230-9ab5-8ea9bfd5eedb
select p.id,
       p.org_id,
       p.step_id,
       p.image_path,
       coalesce(p.subcategory_ids, '{}'::text[]),
       coalesce(s.also_include_ids, '{}'::text[]),
       coalesce(s.scene_description, ''),
       coalesce(p.photo_baseline, ''),
       coalesce(s.spatial_hints, '{}'::jsonb),
       coalesce(p.spatial_hint, '')
from room_photos p
join steps s on s.id = p.step_id
where p.id = $1;
`

const QSelectOptionLookup = `--sql 0afef4bd-9f4e-41d7-ad83-ed1ca3940c5b
select s.id,
       s.name,
       s.is_appliance,
       coalesce(s.generation_rules, '{}'::text[]),
       o.id,
       o.name,
       coalesce(o.prompt_descriptor, ''),
       coalesce(o.swatch_path, ''),
       coalesce(o.generation_rules, '{}'::text[])
from options o
join subcategories s on s.id = o.subcategory_id
where s.org_id = $1;
`

const QSelectPhotoPolicy = `--sql 4132bc43-6294-43b8-9d6a-36ab4d3e4554
select policy_key, is_active, policy_json
from photo_generation_policies
where org_id = $1
  and photo_id = $2;
`
