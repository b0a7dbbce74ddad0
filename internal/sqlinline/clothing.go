package sqlinline

const QListClothingItems = `--sql 1b6e84d2-f03c-49a7-b5e1-c92d07a648f3
select id, user_id, category, name, image_url, thumbnail_url, is_active, created_at, metadata
from clothing_items
where user_id = $1::uuid
  and ($2::text is null or category = $2::text)
  and is_active
order by created_at desc
limit $3::int offset $4::int;
`

// QSelectActiveBasePhoto picks the generation subject: the newest active
// base photo the user uploaded.
const QSelectActiveBasePhoto = `--sql 74c2e9b8-1d50-4a3f-86cb-f05d92a71e46
select id, image_url
from base_photos
where user_id = $1::uuid and is_active
order by created_at desc
limit 1;
`

const QListBasePhotos = `--sql d97a50c1-284e-4b6f-a0d3-7e61f48c25b9
select id, user_id, image_url, is_active, created_at
from base_photos
where user_id = $1::uuid
order by created_at desc;
`
